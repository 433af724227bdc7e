package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/filehaven/filehaven/internal/app"
	"github.com/filehaven/filehaven/internal/instances"
	jobmetrics "github.com/filehaven/filehaven/internal/jobs"
	"github.com/filehaven/filehaven/internal/platform/cache"
	"github.com/filehaven/filehaven/internal/platform/db"
	"github.com/filehaven/filehaven/internal/stats"
	"github.com/filehaven/filehaven/internal/users"
	"github.com/filehaven/filehaven/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	jobMetrics := jobmetrics.NewMetrics(nil)

	usersRepo := users.NewRepository(pool)
	shareJob := jobs.NewShareNotificationJob(usersRepo, queueClient, logger, jobMetrics)

	instancesRepo := instances.NewRepository(pool)
	instancesService := instances.NewService(instancesRepo, nil, logger)
	importJob := jobs.NewInstanceImportJob(instancesService, logger, jobMetrics)

	statsRepo := stats.NewRepository(pool)
	statsService := stats.NewService(statsRepo, redisClient, cfg.StatsCacheTTL, logger)
	warmupJob := jobs.NewStatsWarmupJob(statsService, logger, jobMetrics)

	warmupTask, err := jobs.NewStatsWarmupTask(time.Now().UTC())
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeShareNotification, Handler: shareJob.Handle},
			{Type: jobs.TaskTypeInstanceImport, Handler: importJob.Handle},
			{Type: jobs.TaskTypeStatsWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
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
