package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/actedhq/acted-backend/pkg/enums"
)

// Region groups countries that share the same VAT treatment.
// Rows are seeded by migration and rarely edited; inactive regions are
// excluded from resolution.
type Region struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code      enums.RegionCode `gorm:"column:code;type:varchar(8);uniqueIndex;not null"`
	Name      string           `gorm:"column:name;not null"`
	Active    bool             `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Region) TableName() string { return "vat_regions" }
