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

	"github.com/plantdesk/plantdesk/internal/app"
	"github.com/plantdesk/plantdesk/internal/auth"
	"github.com/plantdesk/plantdesk/internal/navigation"
	"github.com/plantdesk/plantdesk/internal/observability"
	"github.com/plantdesk/plantdesk/internal/orders"
	"github.com/plantdesk/plantdesk/internal/platform/cache"
	"github.com/plantdesk/plantdesk/internal/platform/db"
	"github.com/plantdesk/plantdesk/internal/principals"
	"github.com/plantdesk/plantdesk/internal/rbac"
	"github.com/plantdesk/plantdesk/internal/shared"
	"github.com/plantdesk/plantdesk/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.DBMaxConns, StatementTimeout: cfg.DBStatementTimeout})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "plantdesk_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	var principalCache *principals.Cache
	if cfg.PermissionCacheTTL > 0 {
		principalCache = principals.NewCache(redisClient, cfg.PermissionCacheTTL)
	}
	principalRepo := principals.NewRepository(dbpool, logger)
	principalService := principals.NewService(principalRepo, principalCache, auditLogger, logger)

	gate := rbac.Gate{Loader: principalService, Logger: logger, Metrics: metrics}

	navigationCache := navigation.NewCache(redisClient, cfg.NavigationTTL)
	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, principalService, navigationCache)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	ordersService := orders.NewService(orders.NewRepository(dbpool), shared.NewIdempotencyStore(dbpool), logger)

	queueOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(queueOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(queueOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Pool:               dbpool,
		AuthHandler:        authHandler,
		PrincipalsHandler:  principals.NewHandler(logger, principalService, gate),
		PermissionsHandler: rbac.NewPermissionsHandler(gate),
		NavigationHandler:  navigation.NewHandler(gate),
		OrdersHandler:      orders.NewHandler(logger, ordersService, gate),
		JobHandler:         jobs.NewHandler(inspector, jobClient, gate, logger),
		Metrics:            metrics,
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
