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

	"github.com/praxis-sec/praxis/internal/app"
	"github.com/praxis-sec/praxis/internal/audit"
	audithttp "github.com/praxis-sec/praxis/internal/audit/http"
	"github.com/praxis-sec/praxis/internal/authz"
	"github.com/praxis-sec/praxis/internal/modules"
	"github.com/praxis-sec/praxis/internal/observability"
	"github.com/praxis-sec/praxis/internal/permissions"
	"github.com/praxis-sec/praxis/internal/platform/cache"
	"github.com/praxis-sec/praxis/internal/platform/db"
	"github.com/praxis-sec/praxis/internal/principals"
	"github.com/praxis-sec/praxis/internal/roles"
	"github.com/praxis-sec/praxis/internal/shared"
	"github.com/praxis-sec/praxis/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Sessions degrade to anonymous while Redis is down, so a failed
		// ping delays nothing.
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	recorder := audit.NewRecorder(pool)
	auditService := audit.NewService(audit.NewRepository(pool))

	metrics := observability.NewMetrics()

	evaluator := authz.NewService(authz.NewRepository(pool))
	guard := authz.Middleware{Service: evaluator, Logger: logger, Metrics: metrics}

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, recorder, logger)
	bootstrap := roles.NewBootstrap(rolesRepo, recorder, logger)
	if err := bootstrap.EnsureSuperAdmin(ctx); err != nil {
		logger.Error("bootstrap super admin", slog.Any("error", err))
	}

	principalsService := principals.NewService(principals.NewRepository(pool), recorder, sessionManager, logger)
	modulesService := modules.NewService(modules.NewRepository(pool), recorder, logger)
	permissionsService := permissions.NewService(permissions.NewRepository(pool), recorder, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
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
		AuthzHandler:       authz.NewHandler(logger, evaluator),
		RolesHandler:       roles.NewHandler(logger, rolesService, guard),
		PrincipalsHandler:  principals.NewHandler(logger, principalsService, evaluator, rolesService, guard, sessionManager, cfg.ProvisionSecretHash),
		ModulesHandler:     modules.NewHandler(logger, modulesService, guard),
		PermissionsHandler: permissions.NewHandler(logger, permissionsService, guard),
		AuditHandler:       audithttp.NewHandler(logger, auditService, guard),
		JobsHandler:        jobs.NewHandler(inspector, logger),
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
