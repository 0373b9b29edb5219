package failed

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentrySink reports every failure as a Sentry issue tagged with the queue
// and job id.
type SentrySink struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
}

// NewSentrySink reports through hub. A nil hub uses the current hub, which
// is set up by sentry.Init.
func NewSentrySink(hub *sentry.Hub) *SentrySink {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentrySink{hub: hub, flushTimeout: 2 * time.Second}
}

// Log implements queue.FailureSink.
func (s *SentrySink) Log(_ context.Context, queue string, payload []byte, cause error) error {
	if s.hub.Client() == nil {
		return ErrNotConfigured
	}
	if cause == nil {
		cause = errors.New("job failed")
	}

	rec := NewRecord(queue, payload, cause, timeNow())
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("queue", rec.Queue)
		if rec.JobID != "" {
			scope.SetTag("job_id", rec.JobID)
		}
		scope.SetContext("job", sentry.Context{
			"payload":   rec.Payload,
			"failed_at": rec.FailedAt.Format(time.RFC3339),
		})
		s.hub.CaptureException(cause)
	})
	return nil
}

// Flush waits for buffered events to be delivered.
func (s *SentrySink) Flush() bool {
	return s.hub.Flush(s.flushTimeout)
}
