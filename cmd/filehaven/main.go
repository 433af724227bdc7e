package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/filehaven/filehaven/internal/app"
	"github.com/filehaven/filehaven/internal/auth"
	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/files"
	"github.com/filehaven/filehaven/internal/folders"
	"github.com/filehaven/filehaven/internal/grants"
	"github.com/filehaven/filehaven/internal/instances"
	"github.com/filehaven/filehaven/internal/observability"
	"github.com/filehaven/filehaven/internal/platform/cache"
	"github.com/filehaven/filehaven/internal/platform/db"
	"github.com/filehaven/filehaven/internal/shared"
	"github.com/filehaven/filehaven/internal/stats"
	"github.com/filehaven/filehaven/internal/users"
	"github.com/filehaven/filehaven/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "filehaven_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	authzStore := authz.NewPGStore(dbpool)
	resolver := authz.NewResolver(authzStore, authzStore, cfg.MaxFolderDepth*2)
	guard := authz.NewGuard(resolver, metrics)
	authzMW := authz.Middleware{Logger: logger}

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger)
	usersHandler := users.NewHandler(logger, usersService, authzMW)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, usersRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

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

	instancesRepo := instances.NewRepository(dbpool)
	instancesService := instances.NewService(instancesRepo, auditLogger, logger)
	instancesHandler := instances.NewHandler(logger, instancesService, queueClient, authzMW)

	foldersRepo := folders.NewRepository(dbpool)
	foldersService := folders.NewService(foldersRepo, guard, auditLogger, folders.ServiceConfig{MaxDepth: cfg.MaxFolderDepth})
	foldersHandler := folders.NewHandler(logger, foldersService, authzMW)

	filesRepo := files.NewRepository(dbpool)
	filesService := files.NewService(filesRepo, guard, auditLogger)
	filesHandler := files.NewHandler(logger, filesService, authzMW)

	grantsRepo := grants.NewRepository(dbpool)
	grantsService := grants.NewService(grantsRepo, authzStore, auditLogger, jobs.GrantNotifier{Client: queueClient}, logger)
	grantsHandler := grants.NewHandler(logger, grantsService, authzMW)

	statsRepo := stats.NewRepository(dbpool)
	statsService := stats.NewService(statsRepo, redisClient, cfg.StatsCacheTTL, logger)
	statsHandler := stats.NewHandler(logger, statsService, authzMW)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		PrincipalMiddleware: auth.PrincipalMiddleware(authService, logger),
		Authz:               authzMW,
		AuthHandler:         authHandler,
		UsersHandler:        usersHandler,
		InstancesHandler:    instancesHandler,
		FoldersHandler:      foldersHandler,
		FilesHandler:        filesHandler,
		GrantsHandler:       grantsHandler,
		StatsHandler:        statsHandler,
		JobHandler:          jobHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
