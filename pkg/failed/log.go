package failed

import (
	"context"
	"log/slog"
)

// LogSink writes failures to a logger at error level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs through l.
func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{logger: l}
}

// Log implements queue.FailureSink.
func (s *LogSink) Log(ctx context.Context, queue string, payload []byte, cause error) error {
	rec := NewRecord(queue, payload, cause, timeNow())
	s.logger.ErrorContext(ctx, "job failed",
		slog.String("queue", rec.Queue),
		slog.String("job_id", rec.JobID),
		slog.String("error", rec.Error),
		slog.String("payload", rec.Payload),
	)
	return nil
}
