package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/actedhq/acted-backend/pkg/enums"
	"github.com/actedhq/acted-backend/pkg/types"
)

// CartItem is one line of a cart. The VAT* columns are a denormalized copy of
// the latest per-line calculation; storage constraints keep the rate in [0,1]
// and amounts non-negative, with gross ~= net + vat advisory only.
type CartItem struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID          uuid.UUID               `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductCode     *string                 `gorm:"column:product_code"`
	Quantity        int                     `gorm:"column:quantity;not null;default:1;check:quantity >= 1"`
	ActualPrice     decimal.Decimal         `gorm:"column:actual_price;type:numeric(12,2);not null"`
	Position        int                     `gorm:"column:position;not null;default:0"`
	Metadata        *types.CartItemMetadata `gorm:"column:metadata;type:jsonb;serializer:json"`
	VATRegion       *enums.RegionCode       `gorm:"column:vat_region;type:varchar(8)"`
	VATRate         *decimal.Decimal        `gorm:"column:vat_rate;type:numeric(5,4);check:vat_rate IS NULL OR (vat_rate >= 0 AND vat_rate <= 1)"`
	VATAmount       *decimal.Decimal        `gorm:"column:vat_amount;type:numeric(12,2);check:vat_amount IS NULL OR vat_amount >= 0"`
	GrossAmount     *decimal.Decimal        `gorm:"column:gross_amount;type:numeric(12,2);check:gross_amount IS NULL OR gross_amount >= 0"`
	VATCalculatedAt *time.Time              `gorm:"column:vat_calculated_at"`
	VATRuleVersion  *string                 `gorm:"column:vat_rule_version"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartItem) TableName() string { return "cart_items" }
