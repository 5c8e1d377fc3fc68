package rules

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/pkg/db"
	"github.com/actedhq/acted-backend/pkg/db/models"
	pkgerrors "github.com/actedhq/acted-backend/pkg/errors"
	"github.com/actedhq/acted-backend/pkg/types"
)

// AdminService manages rule and schema definitions. Every write invalidates
// the registry and schema caches so the next execution sees the new state.
type AdminService interface {
	CreateRule(ctx context.Context, input CreateRuleInput) (*models.VATRuleDefinition, error)
	UpdateRule(ctx context.Context, ruleCode string, input UpdateRuleInput) (*models.VATRuleDefinition, error)
	DeactivateRule(ctx context.Context, ruleCode string) error
	CreateSchema(ctx context.Context, input CreateSchemaInput) (*models.RuleFieldsSchema, error)
	UpdateSchema(ctx context.Context, schemaCode string, input UpdateSchemaInput) (*models.RuleFieldsSchema, error)
	InvalidateCaches(entryPoint string)
}

// CreateRuleInput holds the validated payload to create a rule.
type CreateRuleInput struct {
	RuleCode         string
	Name             string
	EntryPoint       string
	Priority         int
	Condition        types.JSONMap
	Actions          []types.RuleAction
	StopProcessing   bool
	ContextSchemaRef *string
	Metadata         types.JSONMap
}

// UpdateRuleInput holds optional mutation values. Updating never rewrites the
// current version; it inserts the next one.
type UpdateRuleInput struct {
	Name             *string
	Priority         *int
	Condition        *types.JSONMap
	Actions          *[]types.RuleAction
	StopProcessing   *bool
	ContextSchemaRef *string
	Metadata         *types.JSONMap
}

// CreateSchemaInput holds the validated payload to create a context schema.
type CreateSchemaInput struct {
	SchemaCode string
	JSONSchema types.JSONMap
}

// UpdateSchemaInput holds the replacement schema body for the next version.
type UpdateSchemaInput struct {
	JSONSchema *types.JSONMap
}

type adminService struct {
	repo     *Repository
	dbClient *db.Client
	registry *Registry
	schemas  *SchemaValidator
}

// NewAdminService constructs the rule administration service.
func NewAdminService(repo *Repository, dbClient *db.Client, registry *Registry, schemas *SchemaValidator) (AdminService, error) {
	if repo == nil {
		return nil, fmt.Errorf("rule repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if registry == nil {
		return nil, fmt.Errorf("rule registry required")
	}
	if schemas == nil {
		return nil, fmt.Errorf("schema validator required")
	}
	return &adminService{repo: repo, dbClient: dbClient, registry: registry, schemas: schemas}, nil
}

func (s *adminService) CreateRule(ctx context.Context, input CreateRuleInput) (*models.VATRuleDefinition, error) {
	if err := validateRulePayload(input.RuleCode, input.Condition, input.Actions); err != nil {
		return nil, err
	}

	_, err := s.repo.FindLatestByCode(ctx, input.RuleCode)
	if err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("rule %q already exists", input.RuleCode))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing rule")
	}

	rule := &models.VATRuleDefinition{
		RuleCode:         input.RuleCode,
		Name:             input.Name,
		EntryPoint:       input.EntryPoint,
		Priority:         input.Priority,
		Active:           true,
		Version:          1,
		Condition:        input.Condition,
		Actions:          input.Actions,
		StopProcessing:   input.StopProcessing,
		ContextSchemaRef: input.ContextSchemaRef,
		Metadata:         input.Metadata,
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		if db.IsDuplicate(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("rule %q already exists", input.RuleCode))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create rule")
	}

	s.registry.Invalidate(rule.EntryPoint)
	return rule, nil
}

func (s *adminService) UpdateRule(ctx context.Context, ruleCode string, input UpdateRuleInput) (*models.VATRuleDefinition, error) {
	var next *models.VATRuleDefinition
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindLatestByCode(ctx, ruleCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("rule %q not found", ruleCode))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rule")
		}

		next = nextRuleVersion(current, input)
		if err := validateRulePayload(next.RuleCode, next.Condition, next.Actions); err != nil {
			return err
		}
		if err := repo.Create(ctx, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create rule version")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.registry.Invalidate(next.EntryPoint)
	return next, nil
}

func (s *adminService) DeactivateRule(ctx context.Context, ruleCode string) error {
	current, err := s.repo.FindLatestByCode(ctx, ruleCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("rule %q not found", ruleCode))
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rule")
	}

	if _, err := s.repo.DeactivateAllVersions(ctx, ruleCode); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate rule")
	}

	s.registry.Invalidate(current.EntryPoint)
	return nil
}

func (s *adminService) CreateSchema(ctx context.Context, input CreateSchemaInput) (*models.RuleFieldsSchema, error) {
	if input.SchemaCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "schema_code is required")
	}
	if len(input.JSONSchema) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "json_schema is required")
	}

	_, err := s.repo.FindLatestSchemaByCode(ctx, input.SchemaCode)
	if err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("schema %q already exists", input.SchemaCode))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing schema")
	}

	schema := &models.RuleFieldsSchema{
		SchemaCode: input.SchemaCode,
		Version:    1,
		Active:     true,
		JSONSchema: input.JSONSchema,
	}
	if err := s.repo.CreateSchema(ctx, schema); err != nil {
		if db.IsDuplicate(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("schema %q already exists", input.SchemaCode))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create schema")
	}

	s.schemas.Invalidate(schema.SchemaCode)
	return schema, nil
}

func (s *adminService) UpdateSchema(ctx context.Context, schemaCode string, input UpdateSchemaInput) (*models.RuleFieldsSchema, error) {
	var next *models.RuleFieldsSchema
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindLatestSchemaByCode(ctx, schemaCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("schema %q not found", schemaCode))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load schema")
		}

		next = &models.RuleFieldsSchema{
			SchemaCode: current.SchemaCode,
			Version:    current.Version + 1,
			Active:     true,
			JSONSchema: current.JSONSchema,
		}
		if input.JSONSchema != nil {
			next.JSONSchema = *input.JSONSchema
		}
		if len(next.JSONSchema) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "json_schema is required")
		}
		if err := repo.CreateSchema(ctx, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create schema version")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.schemas.Invalidate(schemaCode)
	return next, nil
}

// InvalidateCaches drops the cached rule list for one entry point, or every
// cached rule list and compiled schema when entryPoint is empty.
func (s *adminService) InvalidateCaches(entryPoint string) {
	if entryPoint != "" {
		s.registry.Invalidate(entryPoint)
		return
	}
	s.registry.InvalidateAll()
	s.schemas.InvalidateAll()
}

func nextRuleVersion(current *models.VATRuleDefinition, input UpdateRuleInput) *models.VATRuleDefinition {
	next := &models.VATRuleDefinition{
		RuleCode:         current.RuleCode,
		Name:             current.Name,
		EntryPoint:       current.EntryPoint,
		Priority:         current.Priority,
		Active:           true,
		Version:          current.Version + 1,
		Condition:        current.Condition,
		Actions:          current.Actions,
		StopProcessing:   current.StopProcessing,
		ContextSchemaRef: current.ContextSchemaRef,
		Metadata:         current.Metadata,
	}
	if input.Name != nil {
		next.Name = *input.Name
	}
	if input.Priority != nil {
		next.Priority = *input.Priority
	}
	if input.Condition != nil {
		next.Condition = *input.Condition
	}
	if input.Actions != nil {
		next.Actions = *input.Actions
	}
	if input.StopProcessing != nil {
		next.StopProcessing = *input.StopProcessing
	}
	if input.ContextSchemaRef != nil {
		next.ContextSchemaRef = input.ContextSchemaRef
	}
	if input.Metadata != nil {
		next.Metadata = *input.Metadata
	}
	return next
}

func validateRulePayload(ruleCode string, condition types.JSONMap, actions []types.RuleAction) error {
	if ruleCode == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "rule_code is required")
	}
	if len(condition) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "condition is required")
	}
	if len(actions) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one action is required")
	}
	for _, action := range actions {
		if action.Type != types.ActionTypeSetVAT {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported action type %q", action.Type))
		}
		if action.Rate == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "set_vat action requires a rate")
		}
	}
	return nil
}
