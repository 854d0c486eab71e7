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

	"github.com/garmentshop/catalog/internal/app"
	jobmetrics "github.com/garmentshop/catalog/internal/jobs"
	"github.com/garmentshop/catalog/jobs"
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
	if cfg.CacheBackend != app.CacheRedis {
		logger.Warn("cache backend is not shared; warmup only affects this process",
			slog.String("cache", cfg.CacheBackend))
	}

	components, err := app.BuildCatalog(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("build catalog", slog.Any("error", err))
		os.Exit(1)
	}
	defer components.Close()

	warmupJob := jobs.NewCacheWarmupJob(components.Catalog, cfg.WarmupPageSize, logger, jobmetrics.NewMetrics(nil))
	warmupTask, err := jobs.NewCacheWarmupTask(jobs.CacheWarmupPayload{PageSize: cfg.WarmupPageSize})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCatalogCacheWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)}},
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
