package delayq

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/delayq/pkg/health"
	"github.com/dmitrymomot/delayq/pkg/queue"
)

// Option configures the application.
type Option func(*App)

// WithContext sets the parent of the signal-aware context used by Run.
func WithContext(ctx context.Context) Option {
	return func(a *App) {
		if ctx != nil {
			a.baseCtx = ctx
		}
	}
}

// WithLogger sets the application logger. Workers inherit it unless their
// own options say otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithAddress sets the ops server address. Default: ":9090".
// An empty address disables the server.
func WithAddress(addr string) Option {
	return func(a *App) {
		a.server.Addr = addr
	}
}

// WithWorkers runs concurrency worker loops on the named queue.
// May be given several times, once per queue.
func WithWorkers(name string, concurrency int, opts ...queue.WorkerOption) Option {
	return func(a *App) {
		if name == "" || concurrency < 1 {
			return
		}
		a.workers = append(a.workers, workerGroup{queue: name, concurrency: concurrency, opts: opts})
	}
}

// WithRecorder passes r to every worker, typically a metrics.Recorder.
func WithRecorder(r queue.Recorder) Option {
	return func(a *App) {
		a.recorder = r
	}
}

// WithScheduler starts s with the workers and stops it on shutdown.
func WithScheduler(s *queue.Scheduler) Option {
	return func(a *App) {
		a.scheduler = s
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) {
		a.metrics = h
	}
}

// WithShutdownTimeout bounds the graceful shutdown. It covers in-flight
// jobs, the ops server, the scheduler and the shutdown hooks. Default: 30s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// WithStartupHook runs fn before any worker starts. An error aborts Run.
func WithStartupHook(fn func(context.Context) error) Option {
	return func(a *App) {
		if fn != nil {
			a.startupHooks = append(a.startupHooks, fn)
		}
	}
}

// WithShutdownHook runs fn after the workers stopped. Hooks run in
// registration order.
//
//	delayq.WithShutdownHook(redis.Shutdown(client))
func WithShutdownHook(fn func(context.Context) error) Option {
	return func(a *App) {
		if fn != nil {
			a.shutdownHooks = append(a.shutdownHooks, fn)
		}
	}
}

type healthConfig struct {
	checks        health.Checks
	livenessPath  string
	readinessPath string
	timeout       time.Duration
}

const (
	defaultLivenessPath  = "/health/live"
	defaultReadinessPath = "/health/ready"
)

// HealthOption configures the health endpoints.
type HealthOption func(*healthConfig)

// WithLivenessPath overrides "/health/live".
func WithLivenessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.livenessPath = path
		}
	}
}

// WithReadinessPath overrides "/health/ready".
func WithReadinessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.readinessPath = path
		}
	}
}

// WithReadinessCheck adds a named readiness check.
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return func(c *healthConfig) {
		if name != "" && fn != nil {
			c.checks[name] = fn
		}
	}
}

// WithHealthTimeout bounds a readiness run. Default: 5s.
func WithHealthTimeout(d time.Duration) HealthOption {
	return func(c *healthConfig) {
		c.timeout = d
	}
}

// WithHealthChecks enables the health endpoints. The queue's own
// connectivity check is always included as "queue".
func WithHealthChecks(opts ...HealthOption) Option {
	return func(a *App) {
		cfg := &healthConfig{
			livenessPath:  defaultLivenessPath,
			readinessPath: defaultReadinessPath,
			checks:        health.Checks{},
		}
		for _, opt := range opts {
			opt(cfg)
		}
		a.healthConfig = cfg
	}
}
