package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/hanbit-erp/hanbit-erp/internal/app"
	"github.com/hanbit-erp/hanbit-erp/internal/backfill"
	"github.com/hanbit-erp/hanbit-erp/internal/observability"
	"github.com/hanbit-erp/hanbit-erp/internal/platform/db"
	"github.com/hanbit-erp/hanbit-erp/internal/shared"
	"github.com/hanbit-erp/hanbit-erp/internal/voucher"
	"github.com/hanbit-erp/hanbit-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	mappings := voucher.NewMappingRepository(dbpool)
	voucherRepo := voucher.NewRepository(dbpool)
	voucherService := voucher.NewService(voucherRepo, mappings, auditLogger)

	sourceRepo := backfill.NewSourceRepository(dbpool)
	scanner := backfill.NewScanner(sourceRepo, voucherService, logger, metrics)
	backfillJob := jobs.NewBackfillJob(scanner, logger, jobs.BackfillDefaults{
		BusinessUnit: cfg.BackfillUnit,
		PreparedBy:   cfg.BackfillPreparer,
		WindowDays:   cfg.BackfillWindow,
	})

	// Nightly catch-up: the dateless payload makes the handler compute the
	// trailing window at run time, and already-posted documents are skipped,
	// so overlap between runs is harmless.
	cronTask, err := jobs.NewVoucherBackfillTask(jobs.VoucherBackfillPayload{})
	if err != nil {
		logger.Error("build backfill task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskVoucherBackfill, Handler: backfillJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BackfillCron, Task: cronTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
