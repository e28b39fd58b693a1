// Command gatekeeper serves the RBAC and workflow authorization API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/campusware/gatekeeper/pkg/audit"
	"github.com/campusware/gatekeeper/pkg/config"
	"github.com/campusware/gatekeeper/pkg/jobs"
	"github.com/campusware/gatekeeper/pkg/middleware"
	"github.com/campusware/gatekeeper/pkg/observability"
	"github.com/campusware/gatekeeper/pkg/rbac"
	"github.com/campusware/gatekeeper/pkg/storage/postgres"
	"github.com/campusware/gatekeeper/pkg/workflow"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gatekeeper: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting gatekeeper")

	ctx := context.Background()

	db, err := postgres.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := rbac.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run rbac migrations: %w", err)
	}
	if err := workflow.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run workflow migrations: %w", err)
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)

		dbStatsCtx, stopDBStats := context.WithCancel(ctx)
		defer stopDBStats()
		go metrics.CollectDBStats(dbStatsCtx, db, 15*time.Second)
	}

	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		otelProviders, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
		}
	}

	auditor := audit.NewNoOpLogger()
	if cfg.Observability.AuditEnabled {
		dbLogger, err := audit.NewDBLogger(db)
		if err != nil {
			return fmt.Errorf("failed to initialize audit logging: %w", err)
		}
		auditor = dbLogger
	}
	defer auditor.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:       cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
	}

	store := rbac.NewStore(db)
	workflowStore := workflow.NewStore(db)

	var catalog *rbac.Catalog
	if cfg.Cache.Enabled {
		catalog = rbac.NewCatalog(store, cfg.Cache.L1Size, cfg.Cache.TTL, redisClient, metrics)
	}

	policy, err := rbac.LoadPolicy(cfg.Policy.File)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	engine := rbac.NewEngine(store, metrics)
	gate := workflow.NewGate(workflowStore, catalog)
	checker := rbac.NewChecker(engine, gate, policy.Groups.AdminRoles, metrics)

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Audit(auditor))
	if metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}
	router.Use(middleware.Principal(store))

	rbacHandlers := rbac.NewHandlers(store, checker, catalog, policy, logger, metrics)
	rbacHandlers.RegisterRoutes(router)
	workflowHandlers := workflow.NewHandlers(workflowStore, gate, checker, metrics)
	workflowHandlers.RegisterRoutes(router)

	var handler http.Handler = router
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(router, "gatekeeper")
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes and scrapes.
	healthMux := http.NewServeMux()
	healthChecker := observability.NewHealthChecker(db, redisClient)
	observability.RegisterHealthRoutes(healthMux, healthChecker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	sweeper := jobs.NewRoleSweeper(store, logger, auditor, metrics)
	if cfg.Jobs.RoleSweepSchedule != "" {
		if err := sweeper.Start(cfg.Jobs.RoleSweepSchedule); err != nil {
			return err
		}
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		sweeper.Stop()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		return err
	}

	// Give in-flight audit writes a moment to land.
	time.Sleep(100 * time.Millisecond)
	logger.Info("gatekeeper stopped")
	return nil
}
