package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/orderdesk/internal/config"
	"github.com/example/orderdesk/internal/database"
	"github.com/example/orderdesk/internal/logger"
	"github.com/example/orderdesk/internal/repository"
	"github.com/example/orderdesk/internal/services"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "orderdesk",
	Short:         "Orderdesk order management backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(createAdminCmd)
}

// runtime is the shared state every command starts from.
type runtime struct {
	cfg   *config.Config
	log   *slog.Logger
	store *repository.Store
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg := config.Load()
	log := logger.Setup(cfg.AppEnv)

	store, err := database.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("store ready", "driver", cfg.DBDriver)
	return &runtime{cfg: cfg, log: log, store: store}, nil
}

func (r *runtime) authConfig() services.AuthConfig {
	return services.AuthConfig{
		Secret:            r.cfg.JWTSecret,
		TokenTTL:          r.cfg.TokenExpires,
		RememberMeTTL:     r.cfg.RememberMeExpires,
		MinPasswordLength: r.cfg.MinPasswordLength,
	}
}

func (r *runtime) mailer() services.Mailer {
	if r.cfg.MailHost == "" {
		return services.LogMailer{ResetURL: r.cfg.ResetURL, RevealLink: !r.cfg.IsProduction(), Log: r.log}
	}
	return services.NewSMTPMailer(services.SMTPConfig{
		Host:     r.cfg.MailHost,
		Port:     r.cfg.MailPort,
		Username: r.cfg.MailUsername,
		Password: r.cfg.MailPassword,
		From:     r.cfg.MailFrom,
		FromName: r.cfg.MailFromName,
	}, r.cfg.ResetURL)
}

func (r *runtime) close() {
	if err := r.store.Close(context.Background()); err != nil {
		r.log.Warn("store close failed", "error", err)
	}
}
