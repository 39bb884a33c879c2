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
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/app"
	"github.com/meridian-erp/meridian/internal/ledger"
	"github.com/meridian-erp/meridian/internal/ledger/balance"
	"github.com/meridian-erp/meridian/internal/ledger/chart"
	"github.com/meridian-erp/meridian/internal/ledger/classify"
	ledgerhttp "github.com/meridian-erp/meridian/internal/ledger/http"
	"github.com/meridian-erp/meridian/internal/ledger/reports"
	"github.com/meridian-erp/meridian/internal/observability"
	"github.com/meridian-erp/meridian/internal/platform/cache"
	"github.com/meridian-erp/meridian/internal/platform/db"
	"github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/jobs"
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
		logger.Warn("redis connect", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	anomalyThreshold, err := decimal.NewFromString(cfg.AnomalyThreshold)
	if err != nil {
		logger.Warn("invalid anomaly threshold, heuristic disabled", slog.String("value", cfg.AnomalyThreshold))
		anomalyThreshold = decimal.Zero
	}
	validator := ledger.NewValidator(ledger.ValidatorConfig{
		RequireReportingTags: cfg.RequireReportingTags,
		AnomalyThreshold:     anomalyThreshold,
	})

	ledgerRepo := ledger.NewRepository(pool)
	postingService := ledger.NewService(ledgerRepo, auditLogger, validator)
	postingService.WithMetrics(metrics)

	chartService := chart.NewService(chart.NewRepository(pool))
	calculator := balance.NewCalculator(ledgerRepo)

	epsilon, err := decimal.NewFromString(cfg.BalanceEpsilon)
	if err != nil {
		logger.Warn("invalid balance epsilon, using default", slog.String("value", cfg.BalanceEpsilon))
		epsilon = decimal.Zero
	}
	classifier := classify.NewClassifier()
	tbBuilder := reports.NewTrialBalanceBuilder(ledgerRepo, calculator, false)
	bsBuilder := reports.NewBalanceSheetBuilder(ledgerRepo, calculator, classifier, epsilon)
	snapshots := reports.RepositorySnapshots(ledgerRepo)
	tbBuilder.WithSnapshots(snapshots)
	bsBuilder.WithSnapshots(snapshots)

	var reportCache *cache.ReportCache
	if redisClient != nil {
		reportCache = cache.NewReportCache(redisClient, cfg.ReportCacheTTL)
	}

	ledgerHandler := ledgerhttp.NewHandler(logger, postingService, chartService, calculator, tbBuilder, bsBuilder, reportCache)
	ledgerHandler.WithReportTimeout(cfg.ReportTimeout)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
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
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		LedgerHandler: ledgerHandler,
		JobHandler:    jobHandler,
		Metrics:       metrics,
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
