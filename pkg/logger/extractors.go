package logger

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/delayq/pkg/queue"
)

// JobID adds the id of the job being processed.
func JobID() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		job, ok := queue.JobFromContext(ctx)
		if !ok || job.ID() == "" {
			return slog.Attr{}, false
		}
		return slog.String("job_id", job.ID()), true
	}
}

// QueueName adds the queue of the job being processed. Worker loggers are
// already tagged with their queue, so JobExtractors leaves it out.
func QueueName() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		job, ok := queue.JobFromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return slog.String("queue", job.Queue()), true
	}
}

// Attempts adds the attempt number of the job being processed.
func Attempts() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		job, ok := queue.JobFromContext(ctx)
		if !ok || job.Attempts() == 0 {
			return slog.Attr{}, false
		}
		return slog.Uint64("attempts", uint64(job.Attempts())), true
	}
}

// JobExtractors returns JobID and Attempts.
func JobExtractors() []ContextExtractor {
	return []ContextExtractor{JobID(), Attempts()}
}
