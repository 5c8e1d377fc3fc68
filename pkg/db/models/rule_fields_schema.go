package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/actedhq/acted-backend/pkg/types"
)

// RuleFieldsSchema stores a JSON schema used to validate the rule context
// shape before condition evaluation.
type RuleFieldsSchema struct {
	ID         uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SchemaCode string        `gorm:"column:schema_code;not null;uniqueIndex:idx_schema_code_version,priority:1"`
	JSONSchema types.JSONMap `gorm:"column:json_schema;type:jsonb;serializer:json;not null"`
	Version    int           `gorm:"column:version;not null;default:1;uniqueIndex:idx_schema_code_version,priority:2"`
	Active     bool          `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (RuleFieldsSchema) TableName() string { return "rule_fields_schemas" }
