package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/actedhq/acted-backend/pkg/types"
)

// VATRuleDefinition is one version of a rule. Versions within a rule_code are
// monotonic; admin updates insert a new version row rather than mutating the
// old one, so audits can always point at the exact definition they ran.
type VATRuleDefinition struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RuleCode         string             `gorm:"column:rule_code;not null;uniqueIndex:idx_rule_code_version,priority:1"`
	Name             string             `gorm:"column:name;not null"`
	EntryPoint       string             `gorm:"column:entry_point;not null;index"`
	Priority         int                `gorm:"column:priority;not null;default:100"`
	Active           bool               `gorm:"column:active;not null;default:true"`
	Version          int                `gorm:"column:version;not null;default:1;uniqueIndex:idx_rule_code_version,priority:2"`
	Condition        types.JSONMap      `gorm:"column:condition;type:jsonb;serializer:json"`
	Actions          []types.RuleAction `gorm:"column:actions;type:jsonb;serializer:json"`
	StopProcessing   bool               `gorm:"column:stop_processing;not null;default:false"`
	ContextSchemaRef *string            `gorm:"column:context_schema_ref"`
	Metadata         types.JSONMap      `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (VATRuleDefinition) TableName() string { return "vat_rule_definitions" }
