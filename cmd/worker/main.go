package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/brightpath-care/brightpath/internal/app"
	jobmetrics "github.com/brightpath-care/brightpath/internal/jobs"
	"github.com/brightpath-care/brightpath/internal/platform/db"
	"github.com/brightpath-care/brightpath/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	runBackfill := flag.Bool("run-backfill", false, "run the role backfill sweep once and exit")
	flag.Parse()

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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	backfillJob := jobs.NewRoleBackfillJob(pool, logger, metrics)

	if *runBackfill {
		if err := backfillJob.Run(ctx); err != nil {
			logger.Error("role backfill", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	mailer, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := mailer.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	notifyJob := jobs.NewIntakeNotifyJob(logger, cfg.AdminEmail, mailer)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeRoleBackfill, Handler: backfillJob.Handle},
			{Type: jobs.TaskTypeIntakeNotify, Handler: notifyJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 2 * * *", Task: jobs.NewRoleBackfillTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
