package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/actedhq/acted-backend/api/responses"
	"github.com/actedhq/acted-backend/pkg/config"
	"github.com/actedhq/acted-backend/pkg/db"
	"github.com/actedhq/acted-backend/pkg/logger"
	"github.com/actedhq/acted-backend/pkg/redis"
)

const healthCheckTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ActEd-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness of the datastore dependencies. A nil pinger is
// reported as skipped so partial deployments stay observable.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ActEd-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		checks := map[string]string{
			"postgres": checkPinger(ctx, dbP),
			"redis":    checkPinger(ctx, redisP),
		}

		ready := true
		for _, status := range checks {
			if status == "error" {
				ready = false
			}
		}

		status := "ready"
		httpStatus := http.StatusOK
		if !ready {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			if logg != nil {
				logCtx := logg.WithFields(ctx, map[string]any{"checks": checks})
				logg.Warn(logCtx, "readiness check failed")
			}
		}

		responses.WriteSuccessStatus(w, httpStatus, map[string]any{
			"status": status,
			"checks": checks,
		})
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func checkPinger(ctx context.Context, p pinger) string {
	if p == nil {
		return "skipped"
	}
	if err := p.Ping(ctx); err != nil {
		return "error"
	}
	return "ok"
}
