package rules

import (
	"context"

	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/pkg/db/models"
)

// Repository manages VAT rule definitions and context schemas.
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

// ListActiveByEntryPoint returns every active rule version for an entry
// point, lowest priority first, newest version first within a rule code.
// The registry reduces this to the latest version per rule code.
func (r *Repository) ListActiveByEntryPoint(ctx context.Context, entryPoint string) ([]models.VATRuleDefinition, error) {
	var rows []models.VATRuleDefinition
	err := r.db.WithContext(ctx).
		Where("entry_point = ? AND active = ?", entryPoint, true).
		Order("priority ASC").
		Order("rule_code ASC").
		Order("version DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindLatestByCode returns the newest version row for a rule code, active or not.
func (r *Repository) FindLatestByCode(ctx context.Context, ruleCode string) (*models.VATRuleDefinition, error) {
	var row models.VATRuleDefinition
	err := r.db.WithContext(ctx).
		Where("rule_code = ?", ruleCode).
		Order("version DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Create inserts a rule definition row.
func (r *Repository) Create(ctx context.Context, rule *models.VATRuleDefinition) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// DeactivateAllVersions marks every version of a rule code inactive.
func (r *Repository) DeactivateAllVersions(ctx context.Context, ruleCode string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VATRuleDefinition{}).
		Where("rule_code = ?", ruleCode).
		Update("active", false)
	return res.RowsAffected, res.Error
}

// FindSchemaActiveByCode returns the newest active schema for a schema code.
func (r *Repository) FindSchemaActiveByCode(ctx context.Context, schemaCode string) (*models.RuleFieldsSchema, error) {
	var row models.RuleFieldsSchema
	err := r.db.WithContext(ctx).
		Where("schema_code = ? AND active = ?", schemaCode, true).
		Order("version DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindLatestSchemaByCode returns the newest schema version row, active or not.
func (r *Repository) FindLatestSchemaByCode(ctx context.Context, schemaCode string) (*models.RuleFieldsSchema, error) {
	var row models.RuleFieldsSchema
	err := r.db.WithContext(ctx).
		Where("schema_code = ?", schemaCode).
		Order("version DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateSchema inserts a schema row.
func (r *Repository) CreateSchema(ctx context.Context, schema *models.RuleFieldsSchema) error {
	return r.db.WithContext(ctx).Create(schema).Error
}
