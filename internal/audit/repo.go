package audit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/pkg/db/models"
)

// Repository persists rule execution audit rows. The surface is deliberately
// narrow: inserts plus the retention queries. There is no update path.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided DB handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Insert appends one audit row.
func (r *Repository) Insert(ctx context.Context, row *models.RuleExecutionAudit) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// FindByExecutionID returns the audit row for an execution id.
func (r *Repository) FindByExecutionID(ctx context.Context, executionID string) (*models.RuleExecutionAudit, error) {
	var row models.RuleExecutionAudit
	err := r.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByCart returns the audit rows whose input context references the cart,
// newest first.
func (r *Repository) ListByCart(ctx context.Context, cartID string, limit int) ([]models.RuleExecutionAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.RuleExecutionAudit
	err := r.db.WithContext(ctx).
		Where("input_context -> 'cart' ->> 'id' = ?", cartID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountOlderThan counts rows created strictly before the cutoff.
func (r *Repository) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RuleExecutionAudit{}).
		Where("created_at < ?", cutoff).
		Count(&count).Error
	return count, err
}

// DeleteOlderThan removes rows created strictly before the cutoff and returns
// how many went. Rows created exactly at the cutoff stay.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.RuleExecutionAudit{})
	return res.RowsAffected, res.Error
}
