package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/jwebster45206/storyforge/internal/config"
)

const serviceName = "storyforge"

// Setup configures the global slog logger for the environment: JSON in
// production, text everywhere else.
func Setup(cfg *config.Config) *slog.Logger {
	logger := New(os.Stdout, cfg)
	slog.SetDefault(logger)
	return logger
}

// New builds the logger Setup installs, writing to w.
func New(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With("service", serviceName, "environment", cfg.Environment)
}

// Component tags log lines with the subsystem that wrote them.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}
