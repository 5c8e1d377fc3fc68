package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/actedhq/acted-backend/api/routes"
	"github.com/actedhq/acted-backend/internal/audit"
	"github.com/actedhq/acted-backend/internal/cart"
	"github.com/actedhq/acted-backend/internal/cron"
	"github.com/actedhq/acted-backend/internal/regions"
	"github.com/actedhq/acted-backend/internal/rules"
	"github.com/actedhq/acted-backend/internal/vat"
	"github.com/actedhq/acted-backend/internal/vatcontext"
	"github.com/actedhq/acted-backend/pkg/config"
	"github.com/actedhq/acted-backend/pkg/db"
	"github.com/actedhq/acted-backend/pkg/logger"
	"github.com/actedhq/acted-backend/pkg/migrate"
	"github.com/actedhq/acted-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()

	regionResolver, err := regions.NewResolver(regions.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create region resolver", err)
		os.Exit(1)
	}

	rulesRepo := rules.NewRepository(conn)
	ruleRegistry, err := rules.NewRegistry(rulesRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create rule registry", err)
		os.Exit(1)
	}
	schemaValidator, err := rules.NewSchemaValidator(rulesRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create schema validator", err)
		os.Exit(1)
	}
	ruleEngine, err := rules.NewEngine(rules.EngineParams{
		Logger:   logg,
		Registry: ruleRegistry,
		Schemas:  schemaValidator,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create rule engine", err)
		os.Exit(1)
	}
	ruleAdminService, err := rules.NewAdminService(rulesRepo, dbClient, ruleRegistry, schemaValidator)
	if err != nil {
		logg.Error(context.Background(), "failed to create rule admin service", err)
		os.Exit(1)
	}

	cartRepo := cart.NewRepository(conn)
	itemRepo := cart.NewItemRepository(conn)
	cartService, err := cart.NewService(cartRepo, itemRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	contextBuilder, err := vatcontext.NewBuilder(regionResolver, cfg.VAT.ContextVersion)
	if err != nil {
		logg.Error(context.Background(), "failed to create context builder", err)
		os.Exit(1)
	}
	calculator, err := vat.NewCalculator(rulesRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create vat calculator", err)
		os.Exit(1)
	}
	auditRepo := audit.NewRepository(conn)
	vatService, err := vat.NewService(vat.Params{
		Logger:     logg,
		DBClient:   dbClient,
		Carts:      cartRepo,
		Items:      itemRepo,
		Builder:    contextBuilder,
		Engine:     ruleEngine,
		Calculator: calculator,
		Audits:     auditRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create vat service", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewAuditRetentionJob(cron.AuditRetentionJobParams{
		Logger:        logg,
		Repository:    auditRepo,
		RetentionDays: cfg.VAT.AuditRetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create audit retention job", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			cartService,
			vatService,
			ruleAdminService,
			retentionJob,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
