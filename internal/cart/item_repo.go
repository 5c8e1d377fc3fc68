package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/pkg/db/models"
	"github.com/actedhq/acted-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// ItemRepository manages persistent cart items.
type ItemRepository struct {
	db *gorm.DB
}

// NewItemRepository binds the repository to the provided DB handle.
func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *ItemRepository) WithTx(tx *gorm.DB) *ItemRepository {
	if tx == nil {
		return r
	}
	return &ItemRepository{db: tx}
}

// FindByID loads one item restricted to its cart.
func (r *ItemRepository) FindByID(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByCart returns items belonging to a cart in display order.
func (r *ItemRepository) ListByCart(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("position ASC").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts one item row.
func (r *ItemRepository) Create(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// Save persists the full item row.
func (r *ItemRepository) Save(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// Delete removes one item restricted to its cart. Returns affected rows.
func (r *ItemRepository) Delete(ctx context.Context, cartID, itemID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// ItemVATUpdate carries the denormalized per-line calculation written back
// after a successful run.
type ItemVATUpdate struct {
	ItemID       uuid.UUID
	Region       enums.RegionCode
	Rate         decimal.Decimal
	VATAmount    decimal.Decimal
	GrossAmount  decimal.Decimal
	RuleVersion  string
	CalculatedAt time.Time
}

// ApplyVAT writes the calculated VAT columns for one line. An empty region
// stores NULL, matching lines priced without a resolvable region.
func (r *ItemRepository) ApplyVAT(ctx context.Context, update ItemVATUpdate) error {
	var region *enums.RegionCode
	if update.Region != "" {
		region = &update.Region
	}
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", update.ItemID).
		Select("vat_region", "vat_rate", "vat_amount", "gross_amount", "vat_calculated_at", "vat_rule_version").
		Updates(&models.CartItem{
			VATRegion:       region,
			VATRate:         &update.Rate,
			VATAmount:       &update.VATAmount,
			GrossAmount:     &update.GrossAmount,
			VATCalculatedAt: &update.CalculatedAt,
			VATRuleVersion:  &update.RuleVersion,
		}).Error
}
