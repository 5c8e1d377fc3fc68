package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/actedhq/acted-backend/api/controllers"
	"github.com/actedhq/acted-backend/api/middleware"
	"github.com/actedhq/acted-backend/internal/cart"
	"github.com/actedhq/acted-backend/internal/cron"
	"github.com/actedhq/acted-backend/internal/rules"
	"github.com/actedhq/acted-backend/internal/vat"
	"github.com/actedhq/acted-backend/pkg/config"
	"github.com/actedhq/acted-backend/pkg/db"
	"github.com/actedhq/acted-backend/pkg/logger"
	"github.com/actedhq/acted-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	cartService cart.Service,
	vatService vat.Service,
	ruleAdminService rules.AdminService,
	retentionJob *cron.AuditRetentionJob,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1/carts", func(r chi.Router) {
		r.Post("/", controllers.CartCreate(cartService, logg))
		r.Route("/{cartId}", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(cartService, logg))
			r.Post("/vat", controllers.CartCalculateVAT(vatService, cartService, logg))
		})
	})

	r.Route("/api/admin/v1/vat", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Post("/", controllers.AdminRuleCreate(ruleAdminService, logg))
			r.Patch("/{ruleCode}", controllers.AdminRuleUpdate(ruleAdminService, logg))
			r.Delete("/{ruleCode}", controllers.AdminRuleDeactivate(ruleAdminService, logg))
		})
		r.Route("/schemas", func(r chi.Router) {
			r.Post("/", controllers.AdminSchemaCreate(ruleAdminService, logg))
			r.Patch("/{schemaCode}", controllers.AdminSchemaUpdate(ruleAdminService, logg))
		})
		r.Post("/cache/invalidate", controllers.AdminCacheInvalidate(ruleAdminService, logg))
		r.Post("/retention/run", controllers.AdminRetentionRun(retentionJob, logg))
	})

	return r
}
