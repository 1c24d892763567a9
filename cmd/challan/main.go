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

	"github.com/challan-erp/challan-erp/internal/app"
	"github.com/challan-erp/challan-erp/internal/auth"
	"github.com/challan-erp/challan-erp/internal/dc"
	"github.com/challan-erp/challan-erp/internal/leads"
	"github.com/challan-erp/challan-erp/internal/observability"
	"github.com/challan-erp/challan-erp/internal/platform/cache"
	"github.com/challan-erp/challan-erp/internal/platform/db"
	"github.com/challan-erp/challan-erp/internal/rbac"
	"github.com/challan-erp/challan-erp/internal/shared"
	"github.com/challan-erp/challan-erp/internal/warehouse"
	"github.com/challan-erp/challan-erp/jobs"
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
		logger.Warn("redis unavailable, warehouse snapshots uncached", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	warehouseCache := warehouse.NewCache(redisClient, cfg.WarehouseCacheTTL)
	warehouseRepo := warehouse.NewRepository(pool)
	warehouseService := warehouse.NewService(warehouseRepo, warehouseCache, logger)
	if err := warehouseCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("warehouse cache subscription", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()

	challanRepo := dc.NewRepository(pool)
	challanService := dc.NewService(challanRepo, logger)
	challanService.SetInventoryProvider(dc.NewInventoryAdapter(warehouseService))
	challanService.SetApprovalRecorder(approvalRecorder)
	challanService.SetAuditLogger(auditLogger)
	challanService.SetIdempotencyStore(idempotencyStore)
	challanService.SetTransitionObserver(func(from, to dc.DCStatus, result string) {
		metrics.ObserveTransition(string(from), string(to), result)
	})

	leadsRepo := leads.NewRepository(pool)
	leadsService := leads.NewService(leadsRepo, challanService, logger)

	actors := rbac.Middleware{Logger: logger}
	verifier := auth.NewTokenVerifier(cfg.ServiceTokenHash, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Verifier:  verifier,
		Actors:    actors,
		Challans:  dc.NewHandler(logger, challanService),
		Warehouse: warehouse.NewHandler(logger, warehouseService),
		Leads:     leads.NewHandler(logger, leadsService),
		Jobs:      jobs.NewHandler(inspector, logger),
	})

	// Stale idempotency keys are swept in-process; the window is generous so
	// client retries after an outage still replay.
	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := idempotencyStore.Cleanup(ctx, cfg.IdempotencyRetention); err != nil {
					logger.Warn("idempotency cleanup", slog.Any("error", err))
				}
			}
		}
	}()

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
