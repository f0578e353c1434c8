package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clubdesk/clubdesk/internal/accounts"
	"github.com/clubdesk/clubdesk/internal/app"
	"github.com/clubdesk/clubdesk/internal/notify"
	"github.com/clubdesk/clubdesk/internal/platform/cache"
	"github.com/clubdesk/clubdesk/internal/platform/db"
	"github.com/clubdesk/clubdesk/jobs"
)

// resetSweepSpec runs the expired reset token sweep every 15 minutes.
const resetSweepSpec = "*/15 * * * *"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadWorkerConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	accountStore, err := accounts.NewPGStore(pool)
	if err != nil {
		return fmt.Errorf("init account store: %w", err)
	}

	registry := prometheus.NewRegistry()
	if cfg.WorkerMetricsAddr != "" {
		go serveMetrics(ctx, cfg.WorkerMetricsAddr, registry, logger)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Metrics:   jobs.NewMetrics(registry),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: jobs.MailHandler{Mailer: mailer, Logger: logger}.Handle},
			{Type: jobs.TaskTypeResetSweep, Handler: jobs.SweepHandler{Sweeper: accountStore, Logger: logger}.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: resetSweepSpec, Task: jobs.NewResetSweepTask()},
		},
	})
	if err != nil {
		return fmt.Errorf("init worker: %w", err)
	}

	logger.Info("worker started", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker run: %w", err)
	}
	return nil
}

// newMailer delivers queued mail over SMTP, or logs it when SMTP_HOST is unset.
func newMailer(cfg *app.Config, logger *slog.Logger) (jobs.Mailer, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, queued mail is written to the log")
		return notify.LogNotifier{Logger: logger}, nil
	}
	smtp, err := notify.NewSMTPMailer(cfg.SMTP())
	if err != nil {
		return nil, fmt.Errorf("init smtp mailer: %w", err)
	}
	return smtp, nil
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	logger.Info("worker metrics listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("worker metrics", slog.Any("error", err))
	}
}
