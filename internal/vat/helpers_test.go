package vat

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/internal/audit"
	"github.com/actedhq/acted-backend/internal/cart"
	"github.com/actedhq/acted-backend/internal/regions"
	"github.com/actedhq/acted-backend/internal/rules"
	"github.com/actedhq/acted-backend/internal/vatcontext"
	"github.com/actedhq/acted-backend/pkg/db"
	"github.com/actedhq/acted-backend/pkg/db/models"
	"github.com/actedhq/acted-backend/pkg/enums"
	"github.com/actedhq/acted-backend/pkg/logger"
	"github.com/actedhq/acted-backend/pkg/types"
)

func setupVATTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
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
		`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  home_country_iso TEXT,
  home_postcode TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE carts (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  vat_result TEXT,
  vat_last_calculated_at DATETIME,
  vat_calculation_error INTEGER NOT NULL DEFAULT 0,
  vat_calculation_error_message TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_code TEXT,
  quantity INTEGER NOT NULL DEFAULT 1,
  actual_price TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  metadata TEXT,
  vat_region TEXT,
  vat_rate TEXT,
  vat_amount TEXT,
  gross_amount TEXT,
  vat_calculated_at DATETIME,
  vat_rule_version TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE vat_rule_definitions (
  id TEXT PRIMARY KEY,
  rule_code TEXT NOT NULL,
  name TEXT NOT NULL,
  entry_point TEXT NOT NULL,
  priority INTEGER NOT NULL DEFAULT 100,
  active INTEGER NOT NULL DEFAULT 1,
  version INTEGER NOT NULL DEFAULT 1,
  condition TEXT,
  actions TEXT,
  stop_processing INTEGER NOT NULL DEFAULT 0,
  context_schema_ref TEXT,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (rule_code, version)
);`,
		`CREATE TABLE rule_fields_schemas (
  id TEXT PRIMARY KEY,
  schema_code TEXT NOT NULL,
  json_schema TEXT NOT NULL,
  version INTEGER NOT NULL DEFAULT 1,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (schema_code, version)
);`,
		`CREATE TABLE rule_execution_audits (
  id TEXT PRIMARY KEY,
  execution_id TEXT NOT NULL UNIQUE,
  rule_id TEXT,
  rule_version INTEGER NOT NULL DEFAULT 0,
  rule_codes TEXT,
  input_context TEXT,
  output_data TEXT,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
	}
	for _, stmt := range ddl {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func seedRegionMapping(t *testing.T, conn *gorm.DB, iso string, code enums.RegionCode) {
	t.Helper()

	var region models.Region
	err := conn.Where("code = ?", code).First(&region).Error
	if err != nil {
		region = models.Region{ID: uuid.New(), Code: code, Name: string(code), Active: true}
		require.NoError(t, conn.Create(&region).Error)
	}
	country := models.Country{ID: uuid.New(), ISOCode: iso, Name: iso}
	require.NoError(t, conn.Create(&country).Error)
	require.NoError(t, conn.Create(&models.CountryRegion{
		ID:            uuid.New(),
		CountryID:     country.ID,
		RegionID:      region.ID,
		EffectiveFrom: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	}).Error)
}

type standardRule struct {
	code      string
	priority  int
	condition string
	rate      string
	exemption string
}

// seedStandardRuleSet mirrors the shipped seed migration.
func seedStandardRuleSet(t *testing.T, conn *gorm.DB) {
	t.Helper()

	ruleSet := []standardRule{
		{"vat_uk_ebook_zero", 10, `{"and": [{"==": [{"var": "user.region"}, "UK"]}, {"==": [{"var": "item.classification.is_ebook"}, true]}]}`, "0.0000", "UK eBook post-2020"},
		{"vat_uk_standard", 20, `{"==": [{"var": "user.region"}, "UK"]}`, "0.2000", ""},
		{"vat_ie_standard", 30, `{"==": [{"var": "user.region"}, "IE"]}`, "0.2300", ""},
		{"vat_sa_standard", 40, `{"==": [{"var": "user.region"}, "SA"]}`, "0.1500", ""},
		{"vat_row_digital_zero", 50, `{"and": [{"==": [{"var": "user.region"}, "ROW"]}, {"==": [{"var": "item.classification.is_digital"}, true]}]}`, "0.0000", "ROW digital products"},
		{"vat_eu_row_zero", 60, `{"in": [{"var": "user.region"}, ["EU", "ROW"]]}`, "0.0000", "Non-UK customer"},
	}
	for _, r := range ruleSet {
		var condition types.JSONMap
		require.NoError(t, json.Unmarshal([]byte(r.condition), &condition))
		require.NoError(t, conn.Create(&models.VATRuleDefinition{
			ID:             uuid.New(),
			RuleCode:       r.code,
			Name:           r.code,
			EntryPoint:     rules.EntryPointCartCalculateVAT,
			Priority:       r.priority,
			Active:         true,
			Version:        1,
			Condition:      condition,
			Actions:        []types.RuleAction{{Type: types.ActionTypeSetVAT, Rate: r.rate, ExemptionReason: r.exemption}},
			StopProcessing: true,
		}).Error)
	}
}

func seedVATUser(t *testing.T, conn *gorm.DB, iso string) *models.User {
	t.Helper()
	user := &models.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", HomeCountryISO: &iso}
	require.NoError(t, conn.Create(user).Error)
	return user
}

type lineSeed struct {
	code  string
	price string
	qty   int
}

func seedVATCart(t *testing.T, conn *gorm.DB, userID *uuid.UUID, lines ...lineSeed) *models.Cart {
	t.Helper()

	cartRow := &models.Cart{ID: uuid.New(), UserID: userID}
	require.NoError(t, conn.Create(cartRow).Error)
	for i, line := range lines {
		require.NoError(t, conn.Create(&models.CartItem{
			ID:          uuid.New(),
			CartID:      cartRow.ID,
			ProductCode: &lines[i].code,
			Quantity:    line.qty,
			ActualPrice: decimal.RequireFromString(line.price),
			Position:    i,
		}).Error)
	}
	return cartRow
}

func newVATService(t *testing.T, conn *gorm.DB, now func() time.Time) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "vat-test", Level: zerolog.Disabled, Output: io.Discard})
	rulesRepo := rules.NewRepository(conn)
	registry, err := rules.NewRegistry(rulesRepo)
	require.NoError(t, err)
	schemas, err := rules.NewSchemaValidator(rulesRepo)
	require.NoError(t, err)
	engine, err := rules.NewEngine(rules.EngineParams{Logger: logg, Registry: registry, Schemas: schemas})
	require.NoError(t, err)
	resolver, err := regions.NewResolver(regions.NewRepository(conn))
	require.NoError(t, err)
	builder, err := vatcontext.NewBuilder(resolver, "1.0")
	require.NoError(t, err)
	calculator, err := NewCalculator(rulesRepo)
	require.NoError(t, err)

	svc, err := NewService(Params{
		Logger:     logg,
		DBClient:   db.NewFromConn(conn),
		Carts:      cart.NewRepository(conn),
		Items:      cart.NewItemRepository(conn),
		Builder:    builder,
		Engine:     engine,
		Calculator: calculator,
		Audits:     audit.NewRepository(conn),
		Now:        now,
	})
	require.NoError(t, err)
	return svc
}
