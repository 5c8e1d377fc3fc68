package controllers

import (
	"net/http"

	"github.com/actedhq/acted-backend/api/responses"
	"github.com/actedhq/acted-backend/api/validators"
	"github.com/actedhq/acted-backend/internal/cron"
	"github.com/actedhq/acted-backend/pkg/logger"
)

type retentionRunRequest struct {
	DryRun bool `json:"dry_run"`
}

// AdminRetentionRun triggers one audit retention pass outside the cron
// schedule. With dry_run the pass reports the row count without deleting.
func AdminRetentionRun(job *cron.AuditRetentionJob, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload retentionRunRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		report, err := job.Execute(r.Context(), payload.DryRun)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}
