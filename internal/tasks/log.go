package tasks

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/delayq/pkg/logger"
)

// LogName is the name the log task is registered under.
const LogName = "log"

// LogPayload is the data of a log job.
type LogPayload struct {
	Attrs   map[string]any `json:"attrs,omitempty"`
	Message string         `json:"message"`
	Level   string         `json:"level,omitempty"`
}

// Log writes its payload to the process logger. Useful for heartbeats and
// for checking a deployment end to end.
type Log struct {
	logger *slog.Logger
}

// NewLog creates the log task.
func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = logger.NewNope()
	}
	return &Log{logger: l}
}

func (t *Log) Name() string { return LogName }

func (t *Log) Handle(ctx context.Context, p LogPayload) error {
	level := slog.LevelInfo
	if p.Level != "" {
		var err error
		if level, err = logger.ParseLevel(p.Level); err != nil {
			return err
		}
	}

	attrs := make([]slog.Attr, 0, len(p.Attrs))
	for k, v := range p.Attrs {
		attrs = append(attrs, slog.Any(k, v))
	}
	t.logger.LogAttrs(ctx, level, p.Message, attrs...)
	return nil
}
