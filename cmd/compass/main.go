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

	"github.com/compasshq/compass/internal/app"
	"github.com/compasshq/compass/internal/audit"
	audithttp "github.com/compasshq/compass/internal/audit/http"
	"github.com/compasshq/compass/internal/auth"
	"github.com/compasshq/compass/internal/authz"
	"github.com/compasshq/compass/internal/cycles"
	"github.com/compasshq/compass/internal/directory"
	"github.com/compasshq/compass/internal/observability"
	"github.com/compasshq/compass/internal/okr"
	"github.com/compasshq/compass/internal/platform/cache"
	"github.com/compasshq/compass/internal/platform/db"
	"github.com/compasshq/compass/internal/roles"
	"github.com/compasshq/compass/internal/shared"
	"github.com/compasshq/compass/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns, cfg.PGMinConns)
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

	sessionManager := shared.NewSessionManager(redisClient, "compass_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	metrics := observability.NewMetrics()

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	recorder := audit.NewRecorder(auditRepo, logger)

	assignments := authz.NewPGStore(dbpool)
	limiter := authz.NewMutationLimiter(cfg.MutationRateLimit, cfg.MutationRateWindow)
	go limiter.Janitor(ctx, cfg.MutationRateWindow)
	engine := authz.NewEngine(authz.EngineConfig{
		Store:    assignments,
		Limiter:  limiter,
		Recorder: recorder,
		Metrics:  metrics,
		Logger:   logger,
	})

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, engine)

	directoryRepo := directory.NewRepository(dbpool)
	directoryService := directory.NewService(directoryRepo, assignments)
	directoryHandler := directory.NewHandler(directoryService, engine, logger)
	scopeResolver := directory.NewScopeResolver(directoryRepo)

	cyclesRepo := cycles.NewRepository(dbpool)
	cyclesService := cycles.NewService(cyclesRepo, engine)
	cyclesHandler := cycles.NewHandler(cyclesService, logger)

	okrRepo := okr.NewRepository(dbpool)
	okrService := okr.NewService(okrRepo, engine, cyclesService)
	okrHandler := okr.NewHandler(okrService, logger)

	rolesService := roles.NewService(assignments, scopeResolver, engine)
	rolesHandler := roles.NewHandler(rolesService, logger)

	auditHandler := audithttp.NewHandler(logger, auditService, engine)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Principal:        auth.PrincipalMiddleware(authService, logger),
		AuthHandler:      authHandler,
		DirectoryHandler: directoryHandler,
		OKRHandler:       okrHandler,
		CyclesHandler:    cyclesHandler,
		RolesHandler:     rolesHandler,
		AuditHandler:     auditHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
