package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/plantdesk/plantdesk/internal/app"
	"github.com/plantdesk/plantdesk/internal/auth"
	jobmetrics "github.com/plantdesk/plantdesk/internal/jobs"
	"github.com/plantdesk/plantdesk/internal/platform/db"
	"github.com/plantdesk/plantdesk/internal/principals"
	"github.com/plantdesk/plantdesk/internal/shared"
	"github.com/plantdesk/plantdesk/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.DBMaxConns, StatementTimeout: cfg.DBStatementTimeout})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := jobmetrics.NewMetrics(registry)
	go func() {
		if err := jobs.ServeMetrics(ctx, cfg.WorkerMetricsAddr, registry, logger); err != nil {
			logger.Error("worker metrics server", slog.Any("error", err))
		}
	}()

	driftJob := jobs.NewDriftScanJob(principals.NewRepository(pool, logger), logger, metrics)

	driftTask, err := jobs.NewDriftScanTask("cron")
	if err != nil {
		logger.Error("build drift scan task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewRetentionCleanupTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build retention cleanup task", slog.Any("error", err))
		os.Exit(1)
	}
	purgers := map[string]jobs.Purger{
		"idempotency": shared.NewIdempotencyStore(pool),
		"sessions":    auth.NewRepository(pool),
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAccessDriftScan, Handler: driftJob.Handle},
			{Type: jobs.TaskRetentionCleanup, Handler: jobs.RetentionCleanupHandler(purgers, logger, metrics)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DriftScanCron, Task: driftTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
