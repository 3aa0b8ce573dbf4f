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

	"github.com/crmbridge/crmbridge-backend/api/controllers"
	"github.com/crmbridge/crmbridge-backend/api/routes"
	"github.com/crmbridge/crmbridge-backend/internal/audit"
	"github.com/crmbridge/crmbridge-backend/internal/cron"
	"github.com/crmbridge/crmbridge-backend/internal/mappings"
	"github.com/crmbridge/crmbridge-backend/internal/reconciler"
	"github.com/crmbridge/crmbridge-backend/internal/translator"
	"github.com/crmbridge/crmbridge-backend/internal/workers"
	"github.com/crmbridge/crmbridge-backend/pkg/config"
	"github.com/crmbridge/crmbridge-backend/pkg/crm"
	"github.com/crmbridge/crmbridge-backend/pkg/db"
	"github.com/crmbridge/crmbridge-backend/pkg/erp"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
	"github.com/crmbridge/crmbridge-backend/pkg/metrics"
	"github.com/crmbridge/crmbridge-backend/pkg/migrate"
	"github.com/crmbridge/crmbridge-backend/pkg/notify"
	"github.com/crmbridge/crmbridge-backend/pkg/redis"
	"github.com/crmbridge/crmbridge-backend/pkg/reports"
)

const shutdownTimeout = 15 * time.Second

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

	crmClient, err := crm.NewClient(cfg.CRM, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create crm client", err)
		os.Exit(1)
	}
	erpClient, err := erp.NewClient(cfg.ERP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create erp client", err)
		os.Exit(1)
	}

	var notifier notify.Notifier
	if chat := notify.NewChatNotifier(cfg.Notify, logg); chat != nil {
		notifier = chat
	}

	var reportClient *reports.Client
	if cfg.Reports.APIKey != "" {
		reportClient, err = reports.NewClient(cfg.Reports, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create reports client", err)
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)
	jobMetrics := metrics.NewJobMetrics(registry)

	auditSvc := audit.NewService(audit.NewRepository(dbClient.DB()), logg)
	mappingSvc := mappings.NewService(mappings.NewRepository(dbClient.DB()))

	translatorSvc := translator.NewService(
		crmClient, erpClient, mappingSvc, auditSvc, notifier,
		logg, syncMetrics, cfg.CRM, cfg.ERP,
	)
	reconcilerSvc := reconciler.NewService(
		erpClient, crmClient, mappingSvc,
		reconciler.NewRepository(dbClient.DB()),
		auditSvc, notifier, logg, syncMetrics, cfg.ERP,
	)

	// Manual triggers share the overlap lock with the scheduled worker.
	syncLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("stock-sync"), cfg.Sync.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sync lock", err)
		os.Exit(1)
	}
	lockedReconciler := reconciler.NewLockedService(reconcilerSvc, syncLock)

	pool := workers.NewPool(translatorSvc, logg, jobMetrics, cfg.Sync.WorkerCount, cfg.Sync.QueueDepth)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool.Start(ctx)

	pingers := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
		"crm":   crmClient,
		"erp":   erpClient,
	}

	router := routes.New(routes.Deps{
		Config:          cfg,
		Logger:          logg,
		Pingers:         pingers,
		DealQueue:       pool,
		Mappings:        mappingSvc,
		Audit:           auditSvc,
		Reconciler:      lockedReconciler,
		Reports:         reportGenerator(reportClient),
		Notifier:        notifier,
		MetricsRegistry: registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

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
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "error shutting down http server", err)
	}
	pool.Stop()
	logg.Info(ctx, "api server shut down gracefully")
}

// reportGenerator avoids handing the router a typed nil when report
// generation is not configured.
func reportGenerator(client *reports.Client) controllers.ReportGenerator {
	if client == nil {
		return nil
	}
	return client
}
