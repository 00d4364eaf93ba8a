package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/ap"
	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/ar"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("failed to connect to postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()

	inventorySvc := inventory.NewService(inventory.NewRepository(pool), logger, cfg.AllowNegativeStock)
	arSvc := ar.NewService(ar.NewRepository(pool), logger)
	apSvc := ap.NewService(ap.NewRepository(pool), logger)

	ledgerJob := jobs.NewLedgerIntegrityJob(pool, logger, metrics)
	inventoryJob := jobs.NewInventoryAuditJob(inventorySvc, logger, metrics)
	arJob := jobs.NewARAuditJob(arSvc, logger, metrics)
	apJob := jobs.NewAPAuditJob(apSvc, logger, metrics)

	ledgerTask, err := jobs.NewLedgerIntegrityTask("")
	if err != nil {
		logger.Error("failed to build ledger integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	inventoryTask, err := jobs.NewInventoryAuditTask(jobs.InventoryAuditPayload{})
	if err != nil {
		logger.Error("failed to build inventory audit task", slog.Any("error", err))
		os.Exit(1)
	}
	arTask, err := jobs.NewARAuditTask()
	if err != nil {
		logger.Error("failed to build ar audit task", slog.Any("error", err))
		os.Exit(1)
	}
	apTask, err := jobs.NewAPAuditTask()
	if err != nil {
		logger.Error("failed to build ap audit task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: ledgerJob.Handle},
			{Type: jobs.TaskInventoryAudit, Handler: inventoryJob.Handle},
			{Type: jobs.TaskARAudit, Handler: arJob.Handle},
			{Type: jobs.TaskAPAudit, Handler: apJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: ledgerTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: inventoryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 1 * * *", Task: arTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: apTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("failed to build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("meridian worker starting", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("meridian worker stopped")
}
