package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/actedhq/acted-backend/pkg/types"
)

// Cart owns its items and the cached VAT result document. Any item mutation
// clears VATResult, VATLastCalculatedAt and both error flags; the clearing
// happens in the same transaction as the item write.
type Cart struct {
	ID                         uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                     *uuid.UUID          `gorm:"column:user_id;type:uuid"`
	User                       *User               `gorm:"foreignKey:UserID"`
	Items                      []CartItem          `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	VATResult                  *types.VATResultDoc `gorm:"column:vat_result;type:jsonb;serializer:json"`
	VATLastCalculatedAt        *time.Time          `gorm:"column:vat_last_calculated_at"`
	VATCalculationError        bool                `gorm:"column:vat_calculation_error;not null;default:false"`
	VATCalculationErrorMessage *string             `gorm:"column:vat_calculation_error_message"`
	CreatedAt                  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Cart) TableName() string { return "carts" }
