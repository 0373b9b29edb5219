package logger

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig enables the Sentry fan-out. An empty DSN disables it.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN" yaml:"dsn"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production" yaml:"environment"`
	// MinLevel is the lowest level kept as a Sentry log; errors always
	// become issues.
	MinLevel slog.Level `env:"SENTRY_MIN_LEVEL" envDefault:"WARN" yaml:"min_level"`
}

// sentryHandler initialises the SDK and returns its slog handler, or nil when
// Sentry is disabled or cannot start. Failures are reported through fallback.
func sentryHandler(cfg SentryConfig, fallback *slog.Logger) slog.Handler {
	if cfg.DSN == "" {
		return nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		EnableLogs:  true,
	}); err != nil {
		fallback.Error("failed to initialize sentry", slog.String("error", err.Error()))
		return nil
	}

	logLevels := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.MinLevel >= slog.LevelError {
		logLevels = []slog.Level{slog.LevelError}
	}

	return sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevels,
	}.NewSentryHandler(context.Background())
}
