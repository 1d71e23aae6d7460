// Package logger configures the process-wide structured logger.
//
// Production runs emit JSON for log aggregators; every other environment gets
// the human-readable text handler:
//
//	log := logger.Setup(cfg.AppEnv)
//	log.Info("order created", "order_id", id)
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup builds the logger for env and installs it as the slog default.
func Setup(env string) *slog.Logger {
	l := New(os.Stdout, env)
	slog.SetDefault(l)
	return l
}

// New builds a logger writing to w.
func New(w io.Writer, env string) *slog.Logger {
	switch env {
	case "production", "prod":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
