package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/facelessdevhack/plati-rail-admin/internal/app"
	"github.com/facelessdevhack/plati-rail-admin/internal/ledger"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/cache"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/db"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/jobs"
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

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

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
		audit = shared.NewAuditLogger(pool)
	}

	// The recalculation endpoint can run for minutes; the per-run deadline is the ceiling.
	api := apiclient.New(apiclient.Options{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.RecalcAllTimeout,
		MaxRetries: cfg.APIMaxRetries,
		Backoff:    cfg.APIRetryBackoff,
		Logger:     logger,
	})
	recalculator := ledger.NewRecalculator(ledger.RecalculatorConfig{
		Client:  ledger.NewClient(api),
		Redis:   redisClient,
		Audit:   audit,
		Logger:  logger,
		Timeout: cfg.RecalcAllTimeout,
	})
	recalcJob := jobs.NewRecalcAllJob(recalculator, logger, nil)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cache.QueueOpt(redisClient),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRecalcAll, Handler: recalcJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
