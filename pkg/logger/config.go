package logger

import "log/slog"

// Config configures the service logger.
type Config struct {
	Level  slog.Level   `env:"LOG_LEVEL" envDefault:"info"`
	Sentry SentryConfig
}

// SentryConfig enables Sentry when DSN is set.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	// ErrorsOnly stops warnings from being forwarded as Sentry logs.
	ErrorsOnly bool `env:"SENTRY_ERRORS_ONLY" envDefault:"false"`
}
