package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/crmbridge/crmbridge-backend/internal/audit"
	"github.com/crmbridge/crmbridge-backend/internal/cron"
	"github.com/crmbridge/crmbridge-backend/internal/mappings"
	"github.com/crmbridge/crmbridge-backend/internal/reconciler"
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

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)

	auditSvc := audit.NewService(audit.NewRepository(dbClient.DB()), logg)
	mappingSvc := mappings.NewService(mappings.NewRepository(dbClient.DB()))
	reconcilerSvc := reconciler.NewService(
		erpClient, crmClient, mappingSvc,
		reconciler.NewRepository(dbClient.DB()),
		auditSvc, notifier, logg, syncMetrics, cfg.ERP,
	)

	stockJob, err := cron.NewStockSyncJob(reconcilerSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock sync job", err)
		os.Exit(1)
	}
	jobs := []cron.Job{stockJob}

	if cfg.Reports.APIKey != "" {
		reportClient, err := reports.NewClient(cfg.Reports, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create reports client", err)
			os.Exit(1)
		}
		reportJob, err := cron.NewDailyReportJob(auditSvc, reportClient, notifier)
		if err != nil {
			logg.Error(context.Background(), "failed to create daily report job", err)
			os.Exit(1)
		}
		jobs = append(jobs, reportJob)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("stock-sync"), cfg.Sync.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sync lock", err)
		os.Exit(1)
	}

	hour, minute := cfg.Sync.FireTime()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  jobMetrics,
		Hour:     hour,
		Minute:   minute,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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
