package rules

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/pkg/db"
	"github.com/actedhq/acted-backend/pkg/db/models"
	pkgerrors "github.com/actedhq/acted-backend/pkg/errors"
	"github.com/actedhq/acted-backend/pkg/types"
)

func newTestAdmin(t *testing.T, conn *gorm.DB) (AdminService, *Registry, *SchemaValidator) {
	t.Helper()

	repo := NewRepository(conn)
	registry, err := NewRegistry(repo)
	require.NoError(t, err)
	schemas, err := NewSchemaValidator(repo)
	require.NoError(t, err)
	admin, err := NewAdminService(repo, db.NewFromConn(conn), registry, schemas)
	require.NoError(t, err)
	return admin, registry, schemas
}

func jsonMap(t *testing.T, raw string) types.JSONMap {
	t.Helper()
	var m types.JSONMap
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func standardRateActions(rate string) []types.RuleAction {
	return []types.RuleAction{{Type: types.ActionTypeSetVAT, Rate: rate}}
}

func TestAdminCreateRule(t *testing.T) {
	conn := setupRulesTestDB(t)
	admin, _, _ := newTestAdmin(t, conn)
	ctx := context.Background()

	rule, err := admin.CreateRule(ctx, CreateRuleInput{
		RuleCode:       "vat_uk_standard",
		Name:           "UK standard rate",
		EntryPoint:     EntryPointCartCalculateVAT,
		Priority:       20,
		Condition:      jsonMap(t, `{"==": [{"var": "user.region"}, "UK"]}`),
		Actions:        standardRateActions("0.2000"),
		StopProcessing: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rule.Version)
	assert.True(t, rule.Active)

	_, err = admin.CreateRule(ctx, CreateRuleInput{
		RuleCode:   "vat_uk_standard",
		Name:       "duplicate",
		EntryPoint: EntryPointCartCalculateVAT,
		Condition:  jsonMap(t, `{"always": true}`),
		Actions:    standardRateActions("0.2000"),
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())
}

func TestAdminCreateRuleValidation(t *testing.T) {
	conn := setupRulesTestDB(t)
	admin, _, _ := newTestAdmin(t, conn)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateRuleInput
	}{
		{"missing code", CreateRuleInput{Condition: jsonMap(t, `{"always": true}`), Actions: standardRateActions("0.2000")}},
		{"missing condition", CreateRuleInput{RuleCode: "r1", Actions: standardRateActions("0.2000")}},
		{"missing actions", CreateRuleInput{RuleCode: "r1", Condition: jsonMap(t, `{"always": true}`)}},
		{"unsupported action", CreateRuleInput{RuleCode: "r1", Condition: jsonMap(t, `{"always": true}`), Actions: []types.RuleAction{{Type: "noop"}}}},
		{"rate missing", CreateRuleInput{RuleCode: "r1", Condition: jsonMap(t, `{"always": true}`), Actions: []types.RuleAction{{Type: types.ActionTypeSetVAT}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := admin.CreateRule(ctx, tc.input)
			require.Error(t, err)
			appErr := pkgerrors.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
		})
	}
}

func TestAdminUpdateRuleBumpsVersion(t *testing.T) {
	conn := setupRulesTestDB(t)
	admin, registry, _ := newTestAdmin(t, conn)
	ctx := context.Background()

	_, err := admin.CreateRule(ctx, CreateRuleInput{
		RuleCode:       "vat_uk_standard",
		Name:           "UK standard rate",
		EntryPoint:     EntryPointCartCalculateVAT,
		Priority:       20,
		Condition:      jsonMap(t, `{"==": [{"var": "user.region"}, "UK"]}`),
		Actions:        standardRateActions("0.1750"),
		StopProcessing: true,
	})
	require.NoError(t, err)

	// Warm the cache, then update; the next read must see the new version.
	rulesBefore, err := registry.RulesFor(ctx, EntryPointCartCalculateVAT)
	require.NoError(t, err)
	require.Len(t, rulesBefore, 1)

	newActions := standardRateActions("0.2000")
	updated, err := admin.UpdateRule(ctx, "vat_uk_standard", UpdateRuleInput{Actions: &newActions})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "0.2000", updated.Actions[0].Rate)
	assert.Equal(t, 20, updated.Priority, "untouched fields carry forward")

	rulesAfter, err := registry.RulesFor(ctx, EntryPointCartCalculateVAT)
	require.NoError(t, err)
	require.Len(t, rulesAfter, 1)
	assert.Equal(t, 2, rulesAfter[0].Version)
}

func TestAdminUpdateRuleNotFound(t *testing.T) {
	conn := setupRulesTestDB(t)
	admin, _, _ := newTestAdmin(t, conn)

	name := "renamed"
	_, err := admin.UpdateRule(context.Background(), "vat_missing", UpdateRuleInput{Name: &name})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestAdminDeactivateRule(t *testing.T) {
	conn := setupRulesTestDB(t)
	admin, registry, _ := newTestAdmin(t, conn)
	ctx := context.Background()

	_, err := admin.CreateRule(ctx, CreateRuleInput{
		RuleCode:   "vat_uk_standard",
		Name:       "UK standard rate",
		EntryPoint: EntryPointCartCalculateVAT,
		Condition:  jsonMap(t, `{"always": true}`),
		Actions:    standardRateActions("0.2000"),
	})
	require.NoError(t, err)

	_, err = registry.RulesFor(ctx, EntryPointCartCalculateVAT)
	require.NoError(t, err)

	require.NoError(t, admin.DeactivateRule(ctx, "vat_uk_standard"))

	rules, err := registry.RulesFor(ctx, EntryPointCartCalculateVAT)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestAdminSchemaLifecycle(t *testing.T) {
	conn := setupRulesTestDB(t)
	admin, _, schemas := newTestAdmin(t, conn)
	ctx := context.Background()

	created, err := admin.CreateSchema(ctx, CreateSchemaInput{
		SchemaCode: "vat_context",
		JSONSchema: jsonMap(t, minimalCartSchema),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created.Version)

	_, err = admin.CreateSchema(ctx, CreateSchemaInput{
		SchemaCode: "vat_context",
		JSONSchema: jsonMap(t, minimalCartSchema),
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())

	// Validator compiles v1, then the update both bumps and invalidates.
	require.NoError(t, schemas.Validate(ctx, "vat_context", ukEbookContext()))

	stricter := jsonMap(t, `{"type": "object", "required": ["nonexistent"]}`)
	updated, err := admin.UpdateSchema(ctx, "vat_context", UpdateSchemaInput{JSONSchema: &stricter})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	assert.ErrorIs(t, schemas.Validate(ctx, "vat_context", ukEbookContext()), ErrSchemaValidation)
}

func TestAdminInvalidateCachesByEntryPoint(t *testing.T) {
	conn := setupRulesTestDB(t)
	admin, registry, _ := newTestAdmin(t, conn)
	repo := NewRepository(conn)
	ctx := context.Background()

	_, err := admin.CreateRule(ctx, CreateRuleInput{
		RuleCode:   "vat_uk_standard",
		Name:       "UK standard rate",
		EntryPoint: EntryPointCartCalculateVAT,
		Condition:  jsonMap(t, `{"==": [{"var": "user.region"}, "UK"]}`),
		Actions:    standardRateActions("0.2000"),
	})
	require.NoError(t, err)
	_, err = admin.CreateRule(ctx, CreateRuleInput{
		RuleCode:   "other_rule",
		Name:       "other entry point",
		EntryPoint: "other_entry_point",
		Condition:  jsonMap(t, `{"always": true}`),
		Actions:    standardRateActions("0.0000"),
	})
	require.NoError(t, err)

	// Prime both cached lists.
	cartRules, err := registry.RulesFor(ctx, EntryPointCartCalculateVAT)
	require.NoError(t, err)
	require.Len(t, cartRules, 1)
	otherRules, err := registry.RulesFor(ctx, "other_entry_point")
	require.NoError(t, err)
	require.Len(t, otherRules, 1)

	// Write behind the registry's back so only invalidation reveals the rows.
	require.NoError(t, repo.Create(ctx, &models.VATRuleDefinition{
		ID:         uuid.New(),
		RuleCode:   "vat_uk_ebook_zero",
		Name:       "UK eBook zero rating",
		EntryPoint: EntryPointCartCalculateVAT,
		Priority:   10,
		Active:     true,
		Version:    1,
		Condition:  jsonMap(t, `{"always": true}`),
		Actions:    standardRateActions("0.0000"),
	}))
	require.NoError(t, repo.Create(ctx, &models.VATRuleDefinition{
		ID:         uuid.New(),
		RuleCode:   "other_rule_two",
		Name:       "second other rule",
		EntryPoint: "other_entry_point",
		Priority:   10,
		Active:     true,
		Version:    1,
		Condition:  jsonMap(t, `{"always": true}`),
		Actions:    standardRateActions("0.0000"),
	}))

	admin.InvalidateCaches(EntryPointCartCalculateVAT)

	cartRules, err = registry.RulesFor(ctx, EntryPointCartCalculateVAT)
	require.NoError(t, err)
	assert.Len(t, cartRules, 2)
	otherRules, err = registry.RulesFor(ctx, "other_entry_point")
	require.NoError(t, err)
	assert.Len(t, otherRules, 1, "scoped invalidation must leave other entry points cached")

	admin.InvalidateCaches("")

	otherRules, err = registry.RulesFor(ctx, "other_entry_point")
	require.NoError(t, err)
	assert.Len(t, otherRules, 2)
}
