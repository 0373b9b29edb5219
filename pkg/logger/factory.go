package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the process logger from cfg, writing to stdout.
// Records also go to Sentry when cfg.Sentry.DSN is set.
func New(cfg Config, extractors ...ContextExtractor) (*slog.Logger, error) {
	return NewWithWriter(os.Stdout, cfg, extractors...)
}

// NewWithWriter is New with a custom destination.
func NewWithWriter(w io.Writer, cfg Config, extractors ...ContextExtractor) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	case FormatText:
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, cfg.Format)
	}

	if sh := sentryHandler(cfg.Sentry, slog.New(h)); sh != nil {
		h = newMultiHandler(h, sh)
	}

	return slog.New(NewLogHandlerDecorator(h, extractors...)), nil
}
