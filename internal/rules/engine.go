package rules

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/actedhq/acted-backend/pkg/db/models"
	"github.com/actedhq/acted-backend/pkg/enums"
	pkgerrors "github.com/actedhq/acted-backend/pkg/errors"
	"github.com/actedhq/acted-backend/pkg/logger"
	"github.com/actedhq/acted-backend/pkg/types"
)

// EngineParams groups dependencies for the rule engine.
type EngineParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Schemas  *SchemaValidator
}

// Engine runs the rules registered at an entry point against a context.
type Engine struct {
	logg     *logger.Logger
	registry *Registry
	schemas  *SchemaValidator
}

// NewEngine builds a rule engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.Registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "registry is required")
	}
	if params.Schemas == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "schema validator is required")
	}
	return &Engine{
		logg:     params.Logger,
		registry: params.Registry,
		schemas:  params.Schemas,
	}, nil
}

// Execute evaluates every rule at the entry point in priority order.
//
// Per-rule failures never abort the batch: a rule that fails schema
// validation, condition evaluation or action execution is recorded with its
// error status and processing continues. The one exception is a failing rule
// that carries stop_processing, which stops the batch there.
func (e *Engine) Execute(ctx context.Context, entryPoint string, doc map[string]any) (*ExecutionResult, error) {
	ruleSet, err := e.registry.RulesFor(ctx, entryPoint)
	if err != nil {
		return nil, err
	}

	result := &ExecutionResult{Success: true}

	for _, rule := range ruleSet {
		stop, execErr := e.executeRule(ctx, rule, doc, result)
		if execErr != nil {
			logCtx := e.logg.WithFields(ctx, map[string]any{
				"rule_code": rule.RuleCode,
				"version":   rule.Version,
			})
			e.logg.Warn(logCtx, fmt.Sprintf("rule skipped: %v", execErr))
		}
		if stop {
			break
		}
	}

	return result, nil
}

// executeRule runs one rule and reports whether processing should stop.
func (e *Engine) executeRule(ctx context.Context, rule models.VATRuleDefinition, doc map[string]any, result *ExecutionResult) (bool, error) {
	if rule.ContextSchemaRef != nil && *rule.ContextSchemaRef != "" {
		if err := e.schemas.Validate(ctx, *rule.ContextSchemaRef, doc); err != nil {
			result.RulesExecuted = append(result.RulesExecuted, RuleExecution{
				RuleID:   rule.ID,
				RuleCode: rule.RuleCode,
				Version:  rule.Version,
				Status:   enums.RuleStatusSchemaError,
				Error:    err.Error(),
			})
			return rule.StopProcessing, err
		}
	}

	matched, err := Evaluate(rule.Condition, doc)
	if err != nil {
		result.RulesExecuted = append(result.RulesExecuted, RuleExecution{
			RuleID:   rule.ID,
			RuleCode: rule.RuleCode,
			Version:  rule.Version,
			Status:   enums.RuleStatusConditionError,
			Error:    err.Error(),
		})
		return rule.StopProcessing, err
	}
	if !matched {
		return false, nil
	}

	if err := e.runActions(rule, result); err != nil {
		result.RulesExecuted = append(result.RulesExecuted, RuleExecution{
			RuleID:   rule.ID,
			RuleCode: rule.RuleCode,
			Version:  rule.Version,
			Status:   enums.RuleStatusActionError,
			Error:    err.Error(),
		})
		return rule.StopProcessing, err
	}

	result.RulesExecuted = append(result.RulesExecuted, RuleExecution{
		RuleID:   rule.ID,
		RuleCode: rule.RuleCode,
		Version:  rule.Version,
		Status:   enums.RuleStatusMatched,
	})
	return rule.StopProcessing, nil
}

func (e *Engine) runActions(rule models.VATRuleDefinition, result *ExecutionResult) error {
	for _, action := range rule.Actions {
		switch action.Type {
		case types.ActionTypeSetVAT:
			rate, err := decimal.NewFromString(action.Rate)
			if err != nil {
				return fmt.Errorf("rule %s: bad rate %q: %w", rule.RuleCode, action.Rate, err)
			}
			if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
				return fmt.Errorf("rule %s: rate %s outside [0,1]", rule.RuleCode, action.Rate)
			}
			result.Calculations = append(result.Calculations, Calculation{
				Rate:            rate,
				RuleID:          rule.ID,
				RuleCode:        rule.RuleCode,
				RuleVersion:     rule.Version,
				ExemptionReason: action.ExemptionReason,
			})
		default:
			return fmt.Errorf("rule %s: unknown action type %q", rule.RuleCode, action.Type)
		}
	}
	return nil
}
