package queue

import (
	"log/slog"
	"time"
)

const (
	defaultMaxAttempts   = 10
	defaultMemoryLimitMB = 512
	defaultSleep         = 3 * time.Second
	defaultMaxBackoff    = 30 * time.Second
)

// workerConfig holds worker loop configuration.
type workerConfig struct {
	logger        *slog.Logger
	recorder      Recorder
	memoryUsage   func() uint64
	queue         string
	sleep         time.Duration
	releaseDelay  time.Duration
	maxBackoff    time.Duration
	memoryLimitMB uint64
	maxAttempts   uint
}

func newWorkerConfig() *workerConfig {
	return &workerConfig{
		queue:         defaultQueue,
		maxAttempts:   defaultMaxAttempts,
		memoryLimitMB: defaultMemoryLimitMB,
		sleep:         defaultSleep,
		maxBackoff:    defaultMaxBackoff,
		memoryUsage:   heapAlloc,
	}
}

// WorkerOption configures a worker.
type WorkerOption func(*workerConfig)

// WithQueue sets the queue the worker polls. Default: "default".
func WithQueue(name string) WorkerOption {
	return func(c *workerConfig) {
		if name != "" {
			c.queue = name
		}
	}
}

// WithMaxAttempts sets the attempt ceiling. A job popped with more attempts
// than n is failed without running. Zero means unlimited. Default: 10.
func WithMaxAttempts(n uint) WorkerOption {
	return func(c *workerConfig) {
		c.maxAttempts = n
	}
}

// WithMemoryLimit sets the memory ceiling in megabytes. The worker stops
// after the job that pushed usage over it. Zero disables the check.
// Default: 512.
func WithMemoryLimit(mb uint64) WorkerOption {
	return func(c *workerConfig) {
		c.memoryLimitMB = mb
	}
}

// WithSleep sets how long the worker waits when the queue is empty.
// Default: 3 seconds.
func WithSleep(d time.Duration) WorkerOption {
	return func(c *workerConfig) {
		if d > 0 {
			c.sleep = d
		}
	}
}

// WithReleaseDelay sets the delay applied when a failed job is released.
// Default: 0.
func WithReleaseDelay(d time.Duration) WorkerOption {
	return func(c *workerConfig) {
		if d >= 0 {
			c.releaseDelay = d
		}
	}
}

// WithMaxBackoff caps the wait between polls while storage is unreachable.
// Default: 30 seconds.
func WithMaxBackoff(d time.Duration) WorkerOption {
	return func(c *workerConfig) {
		if d > 0 {
			c.maxBackoff = d
		}
	}
}

// WithWorkerLogger sets the worker logger. If nil, logging is disabled.
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(c *workerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder sets the recorder notified about every processed job.
func WithRecorder(r Recorder) WorkerOption {
	return func(c *workerConfig) {
		if r != nil {
			c.recorder = r
		}
	}
}

// withMemoryUsage overrides the memory probe.
func withMemoryUsage(fn func() uint64) WorkerOption {
	return func(c *workerConfig) {
		c.memoryUsage = fn
	}
}
