package queue

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"
)

// Recorder observes the worker loop. pkg/metrics provides a Prometheus
// implementation.
type Recorder interface {
	ObserveJob(queue string, state State, elapsed time.Duration)
	ObservePollError(queue string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveJob(string, State, time.Duration) {}
func (nopRecorder) ObservePollError(string)                 {}

// Worker polls one queue and resolves every job it pops.
type Worker struct {
	queue    *Queue
	cfg      *workerConfig
	logger   *slog.Logger
	recorder Recorder
	failures int
}

// NewWorker creates a worker loop over q.
//
// Example:
//
//	w := queue.NewWorker(q,
//	    queue.WithQueue("emails"),
//	    queue.WithMaxAttempts(3),
//	    queue.WithReleaseDelay(30*time.Second),
//	)
//	err := w.Run(ctx)
func NewWorker(q *Queue, opts ...WorkerOption) *Worker {
	cfg := newWorkerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = discardLogger()
	}
	var recorder Recorder = nopRecorder{}
	if cfg.recorder != nil {
		recorder = cfg.recorder
	}

	return &Worker{
		queue:    q,
		cfg:      cfg,
		logger:   logger.With(slog.String("queue", cfg.queue)),
		recorder: recorder,
	}
}

// Run polls until ctx is cancelled or the memory ceiling is reached.
// Cancellation is checked between jobs; a running job is never interrupted.
// Run returns nil after cancellation and ErrMemoryLimit after an
// intentional stop on memory.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "worker started",
		slog.Uint64("max_attempts", uint64(w.cfg.maxAttempts)),
		slog.Uint64("memory_limit_mb", w.cfg.memoryLimitMB),
		slog.Duration("sleep", w.cfg.sleep),
	)

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopped")
			return nil
		}

		processed, err := w.RunOnce(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			continue
		case err != nil:
			w.failures++
			backoff := w.backoff()
			w.logger.ErrorContext(ctx, "poll failed",
				slog.Any("error", err),
				slog.Int("failures", w.failures),
				slog.Duration("retry_in", backoff),
			)
			_ = wait(ctx, backoff)
			continue
		case !processed:
			w.failures = 0
			_ = wait(ctx, w.cfg.sleep)
		default:
			w.failures = 0
		}

		if w.memoryExceeded() {
			w.logger.Warn("memory limit reached, stopping worker",
				slog.Uint64("memory_limit_mb", w.cfg.memoryLimitMB),
			)
			return ErrMemoryLimit
		}
	}
}

// RunOnce pops and processes at most one job. It reports whether a job was
// found. Errors are storage errors from the pop; job failures are resolved
// inside and never returned.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.Pop(ctx, w.cfg.queue)
	if err != nil {
		w.recorder.ObservePollError(w.cfg.queue)
		return false, err
	}
	if job == nil {
		return false, nil
	}

	w.process(ctx, job)
	return true, nil
}

// process resolves the job to deleted, released or failed. It runs on a
// context that ignores cancellation of the poll loop.
func (w *Worker) process(parent context.Context, job *Job) {
	ctx := ContextWithJob(context.WithoutCancel(parent), job)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorContext(ctx, "job processing panicked",
				slog.Any("job", job),
				slog.Any("panic", r),
			)
			w.release(ctx, job)
		}
		w.recorder.ObserveJob(job.Queue(), job.State(), time.Since(start))
	}()

	if err := job.Err(); err != nil {
		w.fail(ctx, job, err)
		return
	}
	if w.cfg.maxAttempts > 0 && job.Attempts() > w.cfg.maxAttempts {
		w.fail(ctx, job, ErrAttemptsExceeded)
		return
	}

	state, err := job.Execute(ctx)
	if err != nil {
		if errors.Is(err, ErrSerialization) || errors.Is(err, ErrHandlerResolution) {
			w.fail(ctx, job, err)
			return
		}
		w.logger.WarnContext(ctx, "job failed",
			slog.Any("job", job),
			slog.Any("error", err),
		)
	}

	if !job.IsDeletedOrReleased() {
		w.release(ctx, job)
		return
	}

	w.logger.DebugContext(ctx, "job processed",
		slog.Any("job", job),
		slog.String("state", state.String()),
		slog.Duration("elapsed", time.Since(start)),
	)
}

func (w *Worker) release(ctx context.Context, job *Job) {
	if job.State().Resolved() || job.Err() != nil {
		return
	}
	if _, err := job.Release(ctx, w.cfg.releaseDelay); err != nil {
		w.logger.ErrorContext(ctx, "job release failed",
			slog.Any("job", job),
			slog.Any("error", err),
		)
	}
}

func (w *Worker) fail(ctx context.Context, job *Job, cause error) {
	w.logger.WarnContext(ctx, "job marked as failed",
		slog.Any("job", job),
		slog.Any("cause", cause),
	)
	if err := job.Failed(ctx, cause); err != nil {
		w.logger.ErrorContext(ctx, "failed job not recorded",
			slog.Any("job", job),
			slog.Any("error", err),
		)
	}
}

// backoff grows linearly with consecutive poll failures.
func (w *Worker) backoff() time.Duration {
	return min(time.Duration(w.failures)*w.cfg.sleep, w.cfg.maxBackoff)
}

func (w *Worker) memoryExceeded() bool {
	if w.cfg.memoryLimitMB == 0 {
		return false
	}
	return w.cfg.memoryUsage() >= w.cfg.memoryLimitMB*1024*1024
}

func heapAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
