package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/pkg/db/models"
	"github.com/actedhq/acted-backend/pkg/types"
)

// vatCacheColumns are the cart columns rewritten by every VAT cache update.
// Struct updates with an explicit column list keep the jsonb serializer in
// play and still write zero values.
var vatCacheColumns = []string{
	"vat_result",
	"vat_last_calculated_at",
	"vat_calculation_error",
	"vat_calculation_error_message",
}

// Repository exposes persistence operations for carts.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// FindByID loads a cart with its items in display order and its owner.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC").Order("created_at ASC")
		}).
		Preload("User").
		Where("id = ?", id).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// ClearVATCache drops the cached VAT result and both error flags.
func (r *Repository) ClearVATCache(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Select(vatCacheColumns).
		Updates(&models.Cart{}).Error
}

// SaveVATResult stores a fresh calculation document and clears the error flags.
func (r *Repository) SaveVATResult(ctx context.Context, cartID uuid.UUID, doc *types.VATResultDoc, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Select(vatCacheColumns).
		Updates(&models.Cart{
			VATResult:           doc,
			VATLastCalculatedAt: &at,
		}).Error
}

// ListVATErrorIDs returns carts flagged by a failed calculation, oldest first.
func (r *Repository) ListVATErrorIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("vat_calculation_error = ?", true).
		Order("updated_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SetVATError flags the cart after a failed calculation and drops any stale
// cached result.
func (r *Repository) SetVATError(ctx context.Context, cartID uuid.UUID, message string) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Select(vatCacheColumns).
		Updates(&models.Cart{
			VATCalculationError:        true,
			VATCalculationErrorMessage: &message,
		}).Error
}
