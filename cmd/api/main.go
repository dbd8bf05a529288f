package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/priyamehta/platetrack-backend/api/controllers"
	"github.com/priyamehta/platetrack-backend/api/routes"
	"github.com/priyamehta/platetrack-backend/internal/audit"
	"github.com/priyamehta/platetrack-backend/internal/directory"
	"github.com/priyamehta/platetrack-backend/internal/ledger"
	"github.com/priyamehta/platetrack-backend/internal/reconcile"
	"github.com/priyamehta/platetrack-backend/internal/sessions"
	"github.com/priyamehta/platetrack-backend/pkg/config"
	"github.com/priyamehta/platetrack-backend/pkg/db"
	"github.com/priyamehta/platetrack-backend/pkg/logger"
	"github.com/priyamehta/platetrack-backend/pkg/metrics"
	"github.com/priyamehta/platetrack-backend/pkg/migrate"
	"github.com/priyamehta/platetrack-backend/pkg/outbox"
	"github.com/priyamehta/platetrack-backend/pkg/redis"
	"github.com/priyamehta/platetrack-backend/pkg/sheets"
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

	pingers := []controllers.Pinger{dbClient}

	var idempotencyStore redis.IdempotencyStore
	if cfg.Redis.Enabled() {
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
		idempotencyStore = redisClient
		pingers = append(pingers, redisClient)
	} else {
		logg.Warn(context.Background(), "redis not configured, idempotency replay disabled")
	}

	var rosterSource reconcile.RowSource
	if cfg.Sheets.Enabled() {
		rosterSource, err = sheets.New(context.Background(), cfg.Sheets, cfg.GCP)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap sheets roster source", err)
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	ledgerMetrics := metrics.NewLedgerMetrics(registry)
	reconcileMetrics := metrics.NewReconcileMetrics(registry)

	gdb := dbClient.DB()
	directoryRepo := directory.NewRepository(gdb)
	ledgerRepo := ledger.NewRepository(gdb)
	sessionsRepo := sessions.NewRepository(gdb)
	auditRepo := audit.NewRepository(gdb)
	events := outbox.NewService(outbox.NewRepository(gdb), logg)

	directoryService, err := directory.NewService(directoryRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create directory service", err)
		os.Exit(1)
	}
	ledgerService, err := ledger.NewService(ledgerRepo, directoryRepo, sessionsRepo, auditRepo, events, dbClient, ledgerMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}
	sessionsService, err := sessions.NewService(sessionsRepo, auditRepo, events, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sessions service", err)
		os.Exit(1)
	}
	auditService, err := audit.NewService(auditRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}
	reconcileService, err := reconcile.NewService(directoryRepo, auditRepo, events, dbClient, rosterSource, cfg.Reconcile.BatchSize, reconcileMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
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
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			Redis:     idempotencyStore,
			Registry:  registry,
			Pingers:   pingers,
			Directory: directoryService,
			Ledger:    ledgerService,
			Sessions:  sessionsService,
			Audit:     auditService,
			Reconcile: reconcileService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(timeoutCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
		}
	}
}
