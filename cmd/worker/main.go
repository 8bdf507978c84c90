package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/compasshq/compass/internal/app"
	"github.com/compasshq/compass/internal/audit"
	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/cycles"
	jobmetrics "github.com/compasshq/compass/internal/jobs"
	"github.com/compasshq/compass/internal/platform/db"
	"github.com/compasshq/compass/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns, cfg.PGMinConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)
	recorder := audit.NewRecorder(auditRepo, logger)

	// No mutation limiter here: counters are in-process state of the API
	// binary and are swept there, not over the queue.
	assignments := authz.NewPGStore(pool)
	engine := authz.NewEngine(authz.EngineConfig{
		Store:    assignments,
		Recorder: recorder,
		Logger:   logger,
	})

	cyclesRepo := cycles.NewRepository(pool)
	cyclesService := cycles.NewService(cyclesRepo, engine)

	handlers := &jobs.HandlerSet{
		Logger:         logger,
		Metrics:        jobmetrics.NewMetrics(nil),
		Cycles:         cyclesService,
		Audit:          auditService,
		AuditRetention: cfg.AuditRetention,
	}

	now := time.Now().UTC()
	autoLockTask, err := jobs.NewCycleAutoLockTask(now)
	if err != nil {
		logger.Error("build auto-lock task", slog.Any("error", err))
		os.Exit(1)
	}
	retentionTask, err := jobs.NewAuditRetentionTask(now)
	if err != nil {
		logger.Error("build retention task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  handlers,
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: autoLockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: retentionTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}
