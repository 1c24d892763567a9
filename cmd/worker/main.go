package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/challan-erp/challan-erp/internal/app"
	"github.com/challan-erp/challan-erp/internal/dc"
	"github.com/challan-erp/challan-erp/internal/platform/cache"
	"github.com/challan-erp/challan-erp/internal/platform/db"
	"github.com/challan-erp/challan-erp/internal/warehouse"
	"github.com/challan-erp/challan-erp/jobs"
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

	warehouseCache := warehouse.NewCache(redisClient, cfg.WarehouseCacheTTL)
	warehouseRepo := warehouse.NewRepository(pool)
	warehouseService := warehouse.NewService(warehouseRepo, warehouseCache, logger)
	if err := warehouseCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("warehouse cache subscription", slog.Any("error", err))
	}

	challanRepo := dc.NewRepository(pool)
	challanService := dc.NewService(challanRepo, logger)
	challanService.SetInventoryProvider(dc.NewInventoryAdapter(warehouseService))

	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	mailer := jobs.SMTPMailer{
		Addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		From: cfg.SMTPFrom,
	}
	mailJob := jobs.NewMailJob(mailer, logger)
	refreshJob := jobs.NewAvailabilityRefreshJob(challanService, logger)
	holdJob := jobs.NewHoldReminderJob(challanService, client, cfg.OpsInbox, logger)

	refreshTask, err := jobs.NewAvailabilityRefreshTask(50)
	if err != nil {
		logger.Error("build refresh task", slog.Any("error", err))
		os.Exit(1)
	}
	holdTask, err := jobs.NewHoldReminderTask(cfg.HoldReminderAfter, 50)
	if err != nil {
		logger.Error("build hold reminder task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: mailJob.Handle},
			{Type: jobs.TaskAvailabilityRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskHoldReminder, Handler: holdJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: refreshTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: "0 8 * * *", Task: holdTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
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
