package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

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
	"github.com/actedhq/acted-backend/pkg/metrics"
	"github.com/actedhq/acted-backend/pkg/migrate"
	"github.com/actedhq/acted-backend/pkg/redis"
)

const lockKeyFormat = "acted:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	auditRepo := audit.NewRepository(conn)

	retentionJob, err := cron.NewAuditRetentionJob(cron.AuditRetentionJobParams{
		Logger:        logg,
		Repository:    auditRepo,
		RetentionDays: cfg.VAT.AuditRetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create audit retention job", err)
		os.Exit(1)
	}

	vatService, cartRepo, err := buildVATService(logg, dbClient, auditRepo, cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to create vat service", err)
		os.Exit(1)
	}
	retryJob, err := cron.NewVATRetryJob(cron.VATRetryJobParams{
		Logger: logg,
		Carts:  cartRepo,
		VAT:    vatService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create vat retry job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(retentionJob, retryJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildVATService(logg *logger.Logger, dbClient *db.Client, auditRepo *audit.Repository, cfg *config.Config) (vat.Service, *cart.Repository, error) {
	conn := dbClient.DB()

	regionResolver, err := regions.NewResolver(regions.NewRepository(conn))
	if err != nil {
		return nil, nil, err
	}

	rulesRepo := rules.NewRepository(conn)
	ruleRegistry, err := rules.NewRegistry(rulesRepo)
	if err != nil {
		return nil, nil, err
	}
	schemaValidator, err := rules.NewSchemaValidator(rulesRepo)
	if err != nil {
		return nil, nil, err
	}
	ruleEngine, err := rules.NewEngine(rules.EngineParams{
		Logger:   logg,
		Registry: ruleRegistry,
		Schemas:  schemaValidator,
	})
	if err != nil {
		return nil, nil, err
	}

	contextBuilder, err := vatcontext.NewBuilder(regionResolver, cfg.VAT.ContextVersion)
	if err != nil {
		return nil, nil, err
	}
	calculator, err := vat.NewCalculator(rulesRepo)
	if err != nil {
		return nil, nil, err
	}

	cartRepo := cart.NewRepository(conn)
	vatService, err := vat.NewService(vat.Params{
		Logger:     logg,
		DBClient:   dbClient,
		Carts:      cartRepo,
		Items:      cart.NewItemRepository(conn),
		Builder:    contextBuilder,
		Engine:     ruleEngine,
		Calculator: calculator,
		Audits:     auditRepo,
	})
	if err != nil {
		return nil, nil, err
	}
	return vatService, cartRepo, nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
