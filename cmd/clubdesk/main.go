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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/clubdesk/clubdesk/internal/accounts"
	"github.com/clubdesk/clubdesk/internal/app"
	"github.com/clubdesk/clubdesk/internal/auth"
	"github.com/clubdesk/clubdesk/internal/notify"
	"github.com/clubdesk/clubdesk/internal/observability"
	"github.com/clubdesk/clubdesk/internal/platform/db"
	"github.com/clubdesk/clubdesk/internal/players"
	"github.com/clubdesk/clubdesk/internal/records"
	"github.com/clubdesk/clubdesk/jobs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Default().Error("clubdesk", slog.Any("error", err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clubdesk",
		Short:         "ClubDesk account and roster API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})
	root.AddCommand(newMigrateCmd(), newCreateAdminCmd())
	return root
}

func serve(ctx context.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	if cfg.MigrateOnStart {
		if err := migrate(cfg.PGDSN, "up", logger); err != nil {
			return err
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	mail, err := newMailer(ctx, cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("init mail driver: %w", err)
	}
	defer func() {
		if err := mail.Close(); err != nil {
			logger.Warn("close mail driver", slog.Any("error", err))
		}
	}()

	issuer, err := auth.NewTokenIssuer([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}
	gate := auth.Gate{Verifier: issuer, Logger: logger}

	accountService, err := newAccountService(pool, cfg, logger, issuer, mail.notifier, metrics)
	if err != nil {
		return err
	}
	recordStore, err := records.NewPGStore(pool)
	if err != nil {
		return err
	}
	playerStore, err := players.NewPGStore(pool)
	if err != nil {
		return err
	}

	var jobHandler *jobs.Handler
	if mail.inspector != nil {
		jobHandler = jobs.NewHandler(mail.inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Metrics:         metrics,
		AccountsHandler: accounts.NewHandler(logger, accountService, gate),
		RecordsHandler:  records.NewHandler(logger, records.NewService(recordStore), gate),
		PlayersHandler:  players.NewHandler(logger, players.NewService(playerStore), gate),
		JobHandler:      jobHandler,
		HealthChecks: append([]app.HealthCheck{
			{Name: "postgres", Check: pool.Ping},
		}, mail.checks...),
	})

	srv := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("mail_driver", cfg.MailDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply or roll back the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return migrate(cfg.PGDSN, direction, app.NewLogger(cfg))
		},
	}
}

func migrate(dsn, direction string, logger *slog.Logger) error {
	m, err := db.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("close migrator", slog.Any("error", err))
		}
	}()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
	default:
		return fmt.Errorf("unknown migrate direction %q", direction)
	}
	if err != nil {
		return err
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("schema version", slog.String("direction", direction), slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	return nil
}

func newCreateAdminCmd() *cobra.Command {
	var in accounts.SignupInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a confirmed admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := app.NewLogger(cfg)
			pool, err := db.New(cmd.Context(), cfg.PGDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			issuer, err := auth.NewTokenIssuer([]byte(cfg.JWTSecret))
			if err != nil {
				return err
			}
			svc, err := newAccountService(pool, cfg, logger, issuer, notify.LogNotifier{Logger: logger}, nil)
			if err != nil {
				return err
			}
			admin, err := svc.CreateAdmin(cmd.Context(), in)
			if err != nil {
				return err
			}
			logger.Info("admin created", slog.String("id", admin.ID), slog.String("email", admin.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "admin username")
	cmd.Flags().StringVar(&in.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&in.Password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
