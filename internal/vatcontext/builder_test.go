package vatcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/internal/regions"
	"github.com/actedhq/acted-backend/pkg/db/models"
	"github.com/actedhq/acted-backend/pkg/enums"
	"github.com/actedhq/acted-backend/pkg/types"
)

func setupContextTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE vat_regions (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE countries (
  id TEXT PRIMARY KEY,
  iso_code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  default_vat_percent TEXT NOT NULL DEFAULT '0',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE country_regions (
  id TEXT PRIMARY KEY,
  country_id TEXT NOT NULL,
  region_id TEXT NOT NULL,
  effective_from DATETIME NOT NULL,
  effective_to DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedCountryRegion(t *testing.T, db *gorm.DB, iso string, code enums.RegionCode) {
	t.Helper()

	region := &models.Region{ID: uuid.New(), Code: code, Name: string(code), Active: true}
	require.NoError(t, db.Create(region).Error)
	country := &models.Country{ID: uuid.New(), ISOCode: iso, Name: iso}
	require.NoError(t, db.Create(country).Error)
	require.NoError(t, db.Create(&models.CountryRegion{
		ID:            uuid.New(),
		CountryID:     country.ID,
		RegionID:      region.ID,
		EffectiveFrom: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	}).Error)
}

func newTestBuilder(t *testing.T, db *gorm.DB) *Builder {
	t.Helper()

	resolver, err := regions.NewResolver(regions.NewRepository(db))
	require.NoError(t, err)
	builder, err := NewBuilder(resolver, "1.0")
	require.NoError(t, err)
	return builder
}

func strPtr(s string) *string { return &s }

func testCart(userID *uuid.UUID, items ...models.CartItem) *models.Cart {
	return &models.Cart{ID: uuid.New(), UserID: userID, Items: items}
}

func TestBuildContextShape(t *testing.T) {
	db := setupContextTestDB(t)
	seedCountryRegion(t, db, "GB", enums.RegionUK)
	builder := newTestBuilder(t, db)

	user := &models.User{ID: uuid.New(), Email: "student@example.com", HomeCountryISO: strPtr("GB"), HomePostcode: strPtr("AB1 2CD")}
	cart := testCart(&user.ID,
		models.CartItem{ID: uuid.New(), ProductCode: strPtr("CM1-EBOOK-2025"), Quantity: 2, ActualPrice: decimal.RequireFromString("45.50"), Position: 0},
		models.CartItem{ID: uuid.New(), ProductCode: strPtr("CM1-PRINT-2025"), Quantity: 1, ActualPrice: decimal.RequireFromString("55.00"), Position: 1},
	)

	at := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	doc, err := builder.Build(context.Background(), user, cart, at)
	require.NoError(t, err)

	assert.Equal(t, enums.RegionUK, doc.Region)
	require.NotNil(t, doc.User.Region)
	assert.Equal(t, "UK", *doc.User.Region)
	assert.Equal(t, "GB", doc.User.Address.Country)
	assert.Equal(t, "AB1 2CD", doc.User.Address.Postcode)

	require.Len(t, doc.Items(), 2)
	assert.Equal(t, "91.00", doc.Items()[0].NetAmount)
	assert.True(t, doc.Items()[0].Classification.IsEbook)
	assert.Equal(t, "55.00", doc.Items()[1].NetAmount)
	assert.True(t, doc.Items()[1].Classification.IsMaterial)
	assert.Equal(t, "146.00", doc.Cart.TotalNet)
	assert.Equal(t, "2025-04-01", doc.Settings.EffectiveDate)
	assert.Equal(t, "1.0", doc.Settings.ContextVersion)
}

func TestBuildDocumentForItem(t *testing.T) {
	db := setupContextTestDB(t)
	seedCountryRegion(t, db, "GB", enums.RegionUK)
	builder := newTestBuilder(t, db)

	user := &models.User{ID: uuid.New(), Email: "student@example.com", HomeCountryISO: strPtr("GB")}
	cart := testCart(&user.ID,
		models.CartItem{ID: uuid.New(), ProductCode: strPtr("CM1-EBOOK-2025"), Quantity: 1, ActualPrice: decimal.RequireFromString("45.50")},
	)

	doc, err := builder.Build(context.Background(), user, cart, time.Now().UTC())
	require.NoError(t, err)

	itemDoc, err := doc.DocumentForItem(0)
	require.NoError(t, err)

	item, ok := itemDoc["item"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "45.50", item["net_amount"])
	classification, ok := item["classification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, classification["is_ebook"])

	// Shared keys survive alongside the item.
	assert.Contains(t, itemDoc, "user")
	assert.Contains(t, itemDoc, "cart")
	assert.Contains(t, itemDoc, "settings")
	assert.NotContains(t, doc.Document(), "item")

	_, err = doc.DocumentForItem(5)
	assert.Error(t, err)
}

func TestBuildAnonymousUserHasNullIDAndRegion(t *testing.T) {
	db := setupContextTestDB(t)
	seedCountryRegion(t, db, "GB", enums.RegionUK)
	builder := newTestBuilder(t, db)

	cart := testCart(nil,
		models.CartItem{ID: uuid.New(), ProductCode: strPtr("CM1-ONLINE-2025"), Quantity: 1, ActualPrice: decimal.RequireFromString("99.99")},
	)

	doc, err := builder.Build(context.Background(), nil, cart, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, doc.Region)
	assert.Nil(t, doc.User.ID)
	assert.Nil(t, doc.User.Region)
	assert.Empty(t, doc.User.Address.Country)

	user, ok := doc.Document()["user"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, user["id"])
	assert.Nil(t, user["region"])
	address, ok := user["address"].(map[string]any)
	require.True(t, ok)
	assert.Empty(t, address)
}

func TestBuildUserWithoutHomeCountryHasNullRegion(t *testing.T) {
	db := setupContextTestDB(t)
	seedCountryRegion(t, db, "GB", enums.RegionUK)
	builder := newTestBuilder(t, db)

	user := &models.User{ID: uuid.New(), Email: "student@example.com"}
	cart := testCart(&user.ID,
		models.CartItem{ID: uuid.New(), ProductCode: strPtr("CM1-PRINT-2025"), Quantity: 1, ActualPrice: decimal.RequireFromString("55.00")},
	)

	doc, err := builder.Build(context.Background(), user, cart, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, doc.Region)
	assert.Nil(t, doc.User.Region)
	require.NotNil(t, doc.User.ID)
	assert.Equal(t, user.ID.String(), *doc.User.ID)
}

func TestBuildUnmappedCountryDefaultsToROW(t *testing.T) {
	db := setupContextTestDB(t)
	seedCountryRegion(t, db, "GB", enums.RegionUK)
	builder := newTestBuilder(t, db)

	user := &models.User{ID: uuid.New(), Email: "student@example.com", HomeCountryISO: strPtr("US")}
	cart := testCart(&user.ID,
		models.CartItem{ID: uuid.New(), ProductCode: strPtr("CM1-ONLINE-2025"), Quantity: 1, ActualPrice: decimal.RequireFromString("99.99")},
	)

	doc, err := builder.Build(context.Background(), user, cart, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, enums.RegionROW, doc.Region)
	require.NotNil(t, doc.User.Region)
	assert.Equal(t, "ROW", *doc.User.Region)
	assert.Equal(t, "US", doc.User.Address.Country)
}

func TestBuildMetadataClassificationHintWins(t *testing.T) {
	db := setupContextTestDB(t)
	seedCountryRegion(t, db, "GB", enums.RegionUK)
	builder := newTestBuilder(t, db)

	user := &models.User{ID: uuid.New(), Email: "student@example.com", HomeCountryISO: strPtr("GB")}
	hint := &types.Classification{IsLiveTutorial: true, ProductType: enums.ProductTypeLiveTutorial}
	cart := testCart(&user.ID,
		models.CartItem{
			ID:          uuid.New(),
			ProductCode: strPtr("CM1-EBOOK-2025"),
			Quantity:    1,
			ActualPrice: decimal.RequireFromString("120.00"),
			Metadata:    &types.CartItemMetadata{Classification: hint},
		},
	)

	doc, err := builder.Build(context.Background(), user, cart, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, doc.Items(), 1)
	assert.True(t, doc.Items()[0].Classification.IsLiveTutorial)
	assert.False(t, doc.Items()[0].Classification.IsEbook)
}

func TestBuildItemOrderFollowsPosition(t *testing.T) {
	db := setupContextTestDB(t)
	seedCountryRegion(t, db, "GB", enums.RegionUK)
	builder := newTestBuilder(t, db)

	user := &models.User{ID: uuid.New(), Email: "student@example.com", HomeCountryISO: strPtr("GB")}
	second := models.CartItem{ID: uuid.New(), ProductCode: strPtr("B-PRINT"), Quantity: 1, ActualPrice: decimal.RequireFromString("10.00"), Position: 2}
	first := models.CartItem{ID: uuid.New(), ProductCode: strPtr("A-PRINT"), Quantity: 1, ActualPrice: decimal.RequireFromString("20.00"), Position: 1}
	cart := testCart(&user.ID, second, first)

	doc, err := builder.Build(context.Background(), user, cart, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, doc.Items(), 2)
	assert.Equal(t, "A-PRINT", doc.Items()[0].ProductCode)
	assert.Equal(t, "B-PRINT", doc.Items()[1].ProductCode)
}

func TestBuildEmptyCart(t *testing.T) {
	db := setupContextTestDB(t)
	seedCountryRegion(t, db, "GB", enums.RegionUK)
	builder := newTestBuilder(t, db)

	user := &models.User{ID: uuid.New(), Email: "student@example.com", HomeCountryISO: strPtr("GB")}
	doc, err := builder.Build(context.Background(), user, testCart(&user.ID), time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, doc.Items())
	assert.Equal(t, "0.00", doc.Cart.TotalNet)
}
