package regions

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/pkg/db/models"
)

// Repository reads the effective-dated country-to-region mapping.
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

// FindMapping returns the latest mapping row whose effective window contains
// the given instant. The window is inclusive at effective_from and exclusive
// at effective_to. Inactive regions are excluded.
func (r *Repository) FindMapping(ctx context.Context, countryISO string, at time.Time) (*models.CountryRegion, error) {
	var row models.CountryRegion
	err := r.db.WithContext(ctx).
		Joins("JOIN countries ON countries.id = country_regions.country_id").
		Joins("JOIN vat_regions ON vat_regions.id = country_regions.region_id").
		Where("countries.iso_code = ?", strings.ToUpper(countryISO)).
		Where("vat_regions.active = ?", true).
		Where("country_regions.effective_from <= ?", at).
		Where("country_regions.effective_to IS NULL OR country_regions.effective_to > ?", at).
		Order("country_regions.effective_from DESC").
		Preload("Region").
		Preload("Country").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
