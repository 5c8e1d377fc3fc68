package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal principal consulted by the VAT context builder: the
// home-address country drives region resolution. Authentication lives
// upstream; this table only mirrors what the address book shares.
type User struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string    `gorm:"column:email;uniqueIndex;not null"`
	HomeCountryISO *string   `gorm:"column:home_country_iso;type:char(2)"`
	HomePostcode   *string   `gorm:"column:home_postcode"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }
