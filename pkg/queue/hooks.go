package queue

import (
	"context"
	"log/slog"
)

// HookFunc is a lifecycle notification. Hooks run synchronously on the
// worker goroutine and their outcome is ignored.
type HookFunc func(ctx context.Context, job *Job)

// LogHooks returns hooks that write a debug record for every execution and
// deletion. Use with WithHooks.
func LogHooks(l *slog.Logger) (beforeExecute, beforeDelete HookFunc) {
	if l == nil {
		l = discardLogger()
	}
	beforeExecute = func(ctx context.Context, job *Job) {
		l.DebugContext(ctx, "before execute",
			slog.String("queue", job.Queue()),
			slog.String("job_id", job.ID()),
			slog.Uint64("attempts", uint64(job.Attempts())),
		)
	}
	beforeDelete = func(ctx context.Context, job *Job) {
		l.DebugContext(ctx, "before delete",
			slog.String("queue", job.Queue()),
			slog.String("job_id", job.ID()),
		)
	}
	return beforeExecute, beforeDelete
}

// FailureSink receives jobs that failed for good and whose handler has no
// failure callback. payload is the raw stored form of the job.
type FailureSink interface {
	Log(ctx context.Context, queue string, payload []byte, cause error) error
}

// FailureSinkFunc adapts a function to FailureSink.
type FailureSinkFunc func(ctx context.Context, queue string, payload []byte, cause error) error

// Log calls f.
func (f FailureSinkFunc) Log(ctx context.Context, queue string, payload []byte, cause error) error {
	return f(ctx, queue, payload, cause)
}

type jobContextKey struct{}

// ContextWithJob returns a copy of ctx carrying job.
// Workers attach the job they process so loggers can extract it.
func ContextWithJob(ctx context.Context, job *Job) context.Context {
	return context.WithValue(ctx, jobContextKey{}, job)
}

// JobFromContext returns the job attached by ContextWithJob, if any.
func JobFromContext(ctx context.Context) (*Job, bool) {
	job, ok := ctx.Value(jobContextKey{}).(*Job)
	return job, ok && job != nil
}
