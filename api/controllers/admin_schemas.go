package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/actedhq/acted-backend/api/responses"
	"github.com/actedhq/acted-backend/api/validators"
	"github.com/actedhq/acted-backend/internal/rules"
	"github.com/actedhq/acted-backend/pkg/db/models"
	"github.com/actedhq/acted-backend/pkg/logger"
	"github.com/actedhq/acted-backend/pkg/types"
)

type schemaCreateRequest struct {
	SchemaCode string        `json:"schema_code" validate:"required"`
	JSONSchema types.JSONMap `json:"json_schema" validate:"required"`
}

type schemaUpdateRequest struct {
	JSONSchema *types.JSONMap `json:"json_schema" validate:"required"`
}

// AdminSchemaCreate registers version 1 of a rule context schema.
func AdminSchemaCreate(svc rules.AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload schemaCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateSchema(r.Context(), rules.CreateSchemaInput{
			SchemaCode: strings.TrimSpace(payload.SchemaCode),
			JSONSchema: payload.JSONSchema,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, schemaResponseFromModel(created))
	}
}

// AdminSchemaUpdate inserts the next version of an existing context schema.
func AdminSchemaUpdate(svc rules.AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schemaCode, err := parseCodeParam(r, "schemaCode")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload schemaUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateSchema(r.Context(), schemaCode, rules.UpdateSchemaInput{
			JSONSchema: payload.JSONSchema,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, schemaResponseFromModel(updated))
	}
}

type schemaResponse struct {
	ID         uuid.UUID     `json:"id"`
	SchemaCode string        `json:"schema_code"`
	JSONSchema types.JSONMap `json:"json_schema"`
	Version    int           `json:"version"`
	Active     bool          `json:"active"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func schemaResponseFromModel(m *models.RuleFieldsSchema) schemaResponse {
	return schemaResponse{
		ID:         m.ID,
		SchemaCode: m.SchemaCode,
		JSONSchema: m.JSONSchema,
		Version:    m.Version,
		Active:     m.Active,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
