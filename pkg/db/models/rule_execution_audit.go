package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/actedhq/acted-backend/pkg/types"
)

// RuleExecutionAudit is the immutable record of one rule engine execution.
// Rows are append-only: the repository exposes no update path and the
// retention job is the only deletion path.
type RuleExecutionAudit struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ExecutionID  string         `gorm:"column:execution_id;uniqueIndex;not null"`
	RuleID       *uuid.UUID     `gorm:"column:rule_id;type:uuid"`
	RuleVersion  int            `gorm:"column:rule_version;not null;default:0"`
	RuleCodes    pq.StringArray `gorm:"column:rule_codes;type:text[]"`
	InputContext types.JSONMap  `gorm:"column:input_context;type:jsonb;serializer:json"`
	OutputData   types.JSONMap  `gorm:"column:output_data;type:jsonb;serializer:json"`
	DurationMS   int64          `gorm:"column:duration_ms;not null;default:0"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime;index"`
}

func (RuleExecutionAudit) TableName() string { return "rule_execution_audits" }
