package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/actedhq/acted-backend/api/responses"
	"github.com/actedhq/acted-backend/api/validators"
	"github.com/actedhq/acted-backend/internal/rules"
	"github.com/actedhq/acted-backend/pkg/db/models"
	pkgerrors "github.com/actedhq/acted-backend/pkg/errors"
	"github.com/actedhq/acted-backend/pkg/logger"
	"github.com/actedhq/acted-backend/pkg/types"
)

type ruleCreateRequest struct {
	RuleCode         string             `json:"rule_code" validate:"required"`
	Name             string             `json:"name" validate:"required"`
	EntryPoint       string             `json:"entry_point" validate:"required"`
	Priority         int                `json:"priority"`
	Condition        types.JSONMap      `json:"condition" validate:"required"`
	Actions          []types.RuleAction `json:"actions" validate:"required,min=1"`
	StopProcessing   bool               `json:"stop_processing"`
	ContextSchemaRef *string            `json:"context_schema_ref"`
	Metadata         types.JSONMap      `json:"metadata"`
}

type ruleUpdateRequest struct {
	Name             *string             `json:"name"`
	Priority         *int                `json:"priority"`
	Condition        *types.JSONMap      `json:"condition"`
	Actions          *[]types.RuleAction `json:"actions"`
	StopProcessing   *bool               `json:"stop_processing"`
	ContextSchemaRef *string             `json:"context_schema_ref"`
	Metadata         *types.JSONMap      `json:"metadata"`
}

// AdminRuleCreate registers version 1 of a new VAT rule.
func AdminRuleCreate(svc rules.AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload ruleCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateRule(r.Context(), rules.CreateRuleInput{
			RuleCode:         strings.TrimSpace(payload.RuleCode),
			Name:             strings.TrimSpace(payload.Name),
			EntryPoint:       strings.TrimSpace(payload.EntryPoint),
			Priority:         payload.Priority,
			Condition:        payload.Condition,
			Actions:          payload.Actions,
			StopProcessing:   payload.StopProcessing,
			ContextSchemaRef: payload.ContextSchemaRef,
			Metadata:         payload.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, ruleResponseFromModel(created))
	}
}

// AdminRuleUpdate inserts the next version of an existing rule.
func AdminRuleUpdate(svc rules.AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ruleCode, err := parseCodeParam(r, "ruleCode")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload ruleUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateRule(r.Context(), ruleCode, rules.UpdateRuleInput{
			Name:             payload.Name,
			Priority:         payload.Priority,
			Condition:        payload.Condition,
			Actions:          payload.Actions,
			StopProcessing:   payload.StopProcessing,
			ContextSchemaRef: payload.ContextSchemaRef,
			Metadata:         payload.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, ruleResponseFromModel(updated))
	}
}

// AdminRuleDeactivate retires every version of a rule code.
func AdminRuleDeactivate(svc rules.AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ruleCode, err := parseCodeParam(r, "ruleCode")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeactivateRule(r.Context(), ruleCode); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deactivated", "rule_code": ruleCode})
	}
}

type cacheInvalidateRequest struct {
	EntryPoint string `json:"entry_point"`
}

// AdminCacheInvalidate drops the in-process rule and schema caches so the next
// execution reloads from the database. An optional entry_point narrows the
// invalidation to that entry point's rule list.
func AdminCacheInvalidate(svc rules.AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cacheInvalidateRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		entryPoint := strings.TrimSpace(payload.EntryPoint)
		svc.InvalidateCaches(entryPoint)

		scope := "all"
		if entryPoint != "" {
			scope = entryPoint
		}
		if logg != nil {
			logg.Info(logg.WithField(r.Context(), "scope", scope), "rule caches invalidated")
		}
		responses.WriteSuccess(w, map[string]string{"status": "invalidated", "scope": scope})
	}
}

func parseCodeParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	return value, nil
}

type ruleResponse struct {
	ID               uuid.UUID          `json:"id"`
	RuleCode         string             `json:"rule_code"`
	Name             string             `json:"name"`
	EntryPoint       string             `json:"entry_point"`
	Priority         int                `json:"priority"`
	Active           bool               `json:"active"`
	Version          int                `json:"version"`
	Condition        types.JSONMap      `json:"condition"`
	Actions          []types.RuleAction `json:"actions"`
	StopProcessing   bool               `json:"stop_processing"`
	ContextSchemaRef *string            `json:"context_schema_ref"`
	Metadata         types.JSONMap      `json:"metadata,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func ruleResponseFromModel(m *models.VATRuleDefinition) ruleResponse {
	return ruleResponse{
		ID:               m.ID,
		RuleCode:         m.RuleCode,
		Name:             m.Name,
		EntryPoint:       m.EntryPoint,
		Priority:         m.Priority,
		Active:           m.Active,
		Version:          m.Version,
		Condition:        m.Condition,
		Actions:          m.Actions,
		StopProcessing:   m.StopProcessing,
		ContextSchemaRef: m.ContextSchemaRef,
		Metadata:         m.Metadata,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
