package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Country is an ISO-3166 country with its default VAT percentage.
type Country struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ISOCode           string          `gorm:"column:iso_code;type:char(2);uniqueIndex;not null"`
	Name              string          `gorm:"column:name;not null"`
	DefaultVATPercent decimal.Decimal `gorm:"column:default_vat_percent;type:numeric(5,2);not null;default:0"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Country) TableName() string { return "countries" }
