package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubdesk/clubdesk/internal/accounts"
	"github.com/clubdesk/clubdesk/internal/app"
	"github.com/clubdesk/clubdesk/internal/auth"
	"github.com/clubdesk/clubdesk/internal/notify"
	"github.com/clubdesk/clubdesk/internal/observability"
	"github.com/clubdesk/clubdesk/internal/platform/cache"
	"github.com/clubdesk/clubdesk/jobs"
)

// mailer bundles the configured notifier with the queue resources it owns.
type mailer struct {
	notifier  notify.Notifier
	inspector *asynq.Inspector
	checks    []app.HealthCheck
	closers   []func() error
}

func (m *mailer) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func newMailer(ctx context.Context, cfg *app.Config, logger *slog.Logger, metrics *observability.Metrics) (*mailer, error) {
	m := &mailer{}
	var n notify.Notifier
	switch cfg.MailDriver {
	case notify.DriverSMTP:
		smtp, err := notify.NewSMTPMailer(cfg.SMTP())
		if err != nil {
			return nil, err
		}
		n = smtp
	case notify.DriverQueue:
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		opts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		client := jobs.NewClient(opts)
		m.inspector = asynq.NewInspector(opts)
		m.closers = append(m.closers, client.Close, m.inspector.Close, redisClient.Close)
		m.checks = append(m.checks, app.HealthCheck{Name: "redis", Check: cache.Probe(redisClient)})
		n = notify.NewQueueNotifier(client)
	case notify.DriverLog:
		n = notify.LogNotifier{Logger: logger}
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.MailDriver)
	}
	m.notifier = notify.Instrument(n, cfg.MailDriver, metrics.MailDelivery)
	return m, nil
}

func newAccountService(pool *pgxpool.Pool, cfg *app.Config, logger *slog.Logger, issuer *auth.TokenIssuer, n notify.Notifier, metrics *observability.Metrics) (*accounts.Service, error) {
	store, err := accounts.NewPGStore(pool)
	if err != nil {
		return nil, err
	}
	return accounts.NewService(accounts.Dependencies{
		Store:    store,
		Hasher:   cfg.Hasher(),
		Issuer:   issuer,
		Notifier: n,
		Events:   metrics,
		Logger:   logger,
	}, accounts.Config{
		BackendURL: cfg.BackendURL,
		FrontURL:   cfg.FrontURL,
		SessionTTL: cfg.SessionTTL,
		ResetTTL:   cfg.ResetTokenTTL,
	}), nil
}
