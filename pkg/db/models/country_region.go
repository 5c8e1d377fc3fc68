package models

import (
	"time"

	"github.com/google/uuid"
)

// CountryRegion maps a country into a VAT region for a dated interval.
// EffectiveTo is open-ended when null; at any instant at most one row per
// country contains that instant. The pair (country_id, effective_from) is
// unique and serves as the resolver's lookup index.
type CountryRegion struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CountryID     uuid.UUID  `gorm:"column:country_id;type:uuid;not null;uniqueIndex:idx_country_effective,priority:1"`
	RegionID      uuid.UUID  `gorm:"column:region_id;type:uuid;not null"`
	EffectiveFrom time.Time  `gorm:"column:effective_from;not null;uniqueIndex:idx_country_effective,priority:2"`
	EffectiveTo   *time.Time `gorm:"column:effective_to"`
	Country       *Country   `gorm:"foreignKey:CountryID"`
	Region        *Region    `gorm:"foreignKey:RegionID"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (CountryRegion) TableName() string { return "country_regions" }
