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

	"github.com/facelessdevhack/plati-rail-admin/internal/app"
	"github.com/facelessdevhack/plati-rail-admin/internal/auth"
	"github.com/facelessdevhack/plati-rail-admin/internal/ledger"
	"github.com/facelessdevhack/plati-rail-admin/internal/observability"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/cache"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/db"
	"github.com/facelessdevhack/plati-rail-admin/internal/production"
	"github.com/facelessdevhack/plati-rail-admin/internal/rbac"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
	"github.com/facelessdevhack/plati-rail-admin/internal/view"
	"github.com/facelessdevhack/plati-rail-admin/internal/warranty"
	"github.com/facelessdevhack/plati-rail-admin/jobs"
	"github.com/facelessdevhack/plati-rail-admin/report"
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
	app.RegisterDownloadTypes(logger)

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

	var audit shared.AuditRecorder = shared.NopAudit{}
	if cfg.PGDSN != "" {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Error("migrate audit schema", slog.Any("error", err))
			os.Exit(1)
		}
		audit = shared.NewAuditLogger(pool)
	} else {
		logger.Info("PG_DSN not set, operator audit trail disabled")
	}

	stores := store.NewRegistry(cfg.StoreCacheSize, cfg.StoreCacheTTL)
	metrics := observability.NewMetrics(stores.Len)

	api := apiclient.New(apiclient.Options{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.APITimeout,
		MaxRetries: cfg.APIMaxRetries,
		Backoff:    cfg.APIRetryBackoff,
		Logger:     logger,
		Observer:   metrics.ObserveUpstream,
	})

	sessionManager := shared.NewSessionManager(redisClient, "plati_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	queueOpt := cache.QueueOpt(redisClient)
	var queue ledger.RecalcEnqueuer
	if cfg.RecalcUseQueue {
		jobClient := jobs.NewClient(queueOpt)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		queue = jobClient
	}

	ledgerClient := ledger.NewClient(api)
	// In-process runs outlive the regular request timeout.
	recalcAPI := apiclient.New(apiclient.Options{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.RecalcAllTimeout,
		Logger:   logger,
		Observer: metrics.ObserveUpstream,
	})
	recalculator := ledger.NewRecalculator(ledger.RecalculatorConfig{
		Client:  ledger.NewClient(recalcAPI),
		Redis:   redisClient,
		Queue:   queue,
		Audit:   audit,
		Logger:  logger,
		Timeout: cfg.RecalcAllTimeout,
	})

	pages := &view.Pages{
		Engine: templates,
		CSRF:   csrfManager,
		Logger: logger,
		Hooks:  []view.Hook{recalculator.Hook()},
	}
	rbacMiddleware := rbac.Middleware{Logger: logger}

	authHandler := auth.NewHandler(logger, auth.NewService(api), pages, sessionManager, stores, audit)

	ledgerService := ledger.NewService(ledgerClient, audit, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, recalculator, pages, stores, rbacMiddleware)

	drafts := production.NewDraftStore(redisClient, cfg.DraftTTL, logger)
	productionService := production.NewService(production.NewClient(api), drafts, audit, logger)
	productionHandler := production.NewHandler(logger, productionService, pages, stores, rbacMiddleware)

	pdfClient := report.NewClient(cfg.GotenbergURL, 30*time.Second)
	warrantyService := warranty.NewService(warranty.NewClient(api), warranty.NewCertificates(pdfClient), audit, logger).
		WithRegion(cfg.PhoneRegion)
	warrantyHandler := warranty.NewHandler(logger, warrantyService, pages, stores, rbacMiddleware)

	inspector := asynq.NewInspector(queueOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Pages:             pages,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		RBACMiddleware:    rbacMiddleware,
		AuthHandler:       authHandler,
		LedgerHandler:     ledgerHandler,
		ProductionHandler: productionHandler,
		WarrantyHandler:   warrantyHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
		HealthChecks: []app.HealthCheck{
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
			{Name: "gotenberg", Optional: true, Check: pdfClient.Ping},
		},
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
