package rules

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/pkg/db/models"
	"github.com/actedhq/acted-backend/pkg/logger"
	"github.com/actedhq/acted-backend/pkg/types"
)

func setupRulesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE vat_rule_definitions (
  id TEXT PRIMARY KEY,
  rule_code TEXT NOT NULL,
  name TEXT NOT NULL,
  entry_point TEXT NOT NULL,
  priority INTEGER NOT NULL DEFAULT 100,
  active INTEGER NOT NULL DEFAULT 1,
  version INTEGER NOT NULL DEFAULT 1,
  condition TEXT,
  actions TEXT,
  stop_processing INTEGER NOT NULL DEFAULT 0,
  context_schema_ref TEXT,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (rule_code, version)
);`,
		`CREATE TABLE rule_fields_schemas (
  id TEXT PRIMARY KEY,
  schema_code TEXT NOT NULL,
  json_schema TEXT NOT NULL,
  version INTEGER NOT NULL DEFAULT 1,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (schema_code, version)
);`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type ruleSeed struct {
	Code           string
	Version        int
	Priority       int
	Active         bool
	Condition      string
	Rate           string
	Exemption      string
	StopProcessing bool
	SchemaRef      *string
	Actions        []types.RuleAction
}

func seedRule(t *testing.T, db *gorm.DB, seed ruleSeed) *models.VATRuleDefinition {
	t.Helper()

	if seed.Version == 0 {
		seed.Version = 1
	}
	if seed.Priority == 0 {
		seed.Priority = 100
	}

	var condition types.JSONMap
	if seed.Condition != "" {
		require.NoError(t, json.Unmarshal([]byte(seed.Condition), &condition))
	}

	actions := seed.Actions
	if actions == nil {
		actions = []types.RuleAction{{
			Type:            types.ActionTypeSetVAT,
			Rate:            seed.Rate,
			ExemptionReason: seed.Exemption,
		}}
	}

	rule := &models.VATRuleDefinition{
		ID:               uuid.New(),
		RuleCode:         seed.Code,
		Name:             seed.Code,
		EntryPoint:       EntryPointCartCalculateVAT,
		Priority:         seed.Priority,
		Active:           seed.Active,
		Version:          seed.Version,
		Condition:        condition,
		Actions:          actions,
		StopProcessing:   seed.StopProcessing,
		ContextSchemaRef: seed.SchemaRef,
	}
	require.NoError(t, db.Create(rule).Error)
	return rule
}

func seedSchema(t *testing.T, db *gorm.DB, code string, version int, active bool, rawSchema string) *models.RuleFieldsSchema {
	t.Helper()

	var body types.JSONMap
	require.NoError(t, json.Unmarshal([]byte(rawSchema), &body))

	row := &models.RuleFieldsSchema{
		ID:         uuid.New(),
		SchemaCode: code,
		JSONSchema: body,
		Version:    version,
		Active:     active,
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "rules-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

func newTestEngine(t *testing.T, db *gorm.DB) (*Engine, *Registry, *SchemaValidator) {
	t.Helper()

	repo := NewRepository(db)
	registry, err := NewRegistry(repo)
	require.NoError(t, err)
	schemas, err := NewSchemaValidator(repo)
	require.NoError(t, err)
	engine, err := NewEngine(EngineParams{
		Logger:   testLogger(),
		Registry: registry,
		Schemas:  schemas,
	})
	require.NoError(t, err)
	return engine, registry, schemas
}
