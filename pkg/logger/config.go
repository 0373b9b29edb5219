package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config selects the process logger.
type Config struct {
	Level  string       `env:"LOG_LEVEL" envDefault:"info" yaml:"level"`
	Format string       `env:"LOG_FORMAT" envDefault:"json" yaml:"format"`
	Sentry SentryConfig `yaml:"sentry"`
}

const (
	FormatJSON = "json"
	FormatText = "text"
)

// ParseLevel accepts debug, info, warn and error, case-insensitive.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return l, nil
}
