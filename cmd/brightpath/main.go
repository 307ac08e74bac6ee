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

	"github.com/brightpath-care/brightpath/internal/app"
	"github.com/brightpath-care/brightpath/internal/auth"
	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/counselees"
	"github.com/brightpath-care/brightpath/internal/counselors"
	"github.com/brightpath-care/brightpath/internal/intake"
	"github.com/brightpath-care/brightpath/internal/observability"
	"github.com/brightpath-care/brightpath/internal/platform/cache"
	"github.com/brightpath-care/brightpath/internal/platform/db"
	"github.com/brightpath-care/brightpath/internal/portal"
	"github.com/brightpath-care/brightpath/internal/shared"
	"github.com/brightpath-care/brightpath/internal/users"
	"github.com/brightpath-care/brightpath/internal/view"
	"github.com/brightpath-care/brightpath/jobs"
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

	sessionManager := shared.NewSessionManager(redisClient, "brightpath_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	dedupStore := shared.NewDeliveryDedup(dbpool)

	authzRepo := authz.NewRepository(dbpool)
	resolver := authz.NewResolver(authzRepo, logger)
	resolver.Repairs = metrics
	authzMiddleware := authz.Middleware{Resolver: resolver, Logger: logger}

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, authzRepo)
	var oidcClient *auth.OIDCClient
	if cfg.OIDCEnabled() {
		oidcClient, err = auth.NewOIDCClient(ctx, auth.OIDCConfig{
			IssuerURL:    cfg.OIDCIssuerURL,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		})
		if err != nil {
			logger.Error("init oidc client", slog.Any("error", err))
			os.Exit(1)
		}
	}
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, oidcClient)

	portalHandler := portal.NewHandler(logger, templates, csrfManager, authzMiddleware)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger, jobClient, logger)
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager, authzMiddleware)

	counselorsRepo := counselors.NewRepository(dbpool)
	counselorsService := counselors.NewService(counselorsRepo, authzRepo, auditLogger, logger)
	counselorsHandler := counselors.NewHandler(logger, counselorsService, templates, csrfManager, authzMiddleware)

	intakeRepo := intake.NewRepository(dbpool)
	intakeService := intake.NewService(intakeRepo, dedupStore, jobClient, logger)
	intakeHandler := intake.NewHandler(logger, intakeService, templates, csrfManager, authzMiddleware, cfg.IntakeWebhookSecret)

	counseleesRepo := counselees.NewRepository(dbpool)
	counseleesService := counselees.NewService(counseleesRepo, counselorsRepo, intakeRepo, auditLogger, logger)
	counseleesHandler := counselees.NewHandler(logger, counseleesService, templates, csrfManager, authzMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		Metrics:           metrics,
		Authz:             authzMiddleware,
		AuthHandler:       authHandler,
		PortalHandler:     portalHandler,
		UsersHandler:      usersHandler,
		CounselorsHandler: counselorsHandler,
		CounseleesHandler: counseleesHandler,
		IntakeHandler:     intakeHandler,
		JobHandler:        jobHandler,
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
