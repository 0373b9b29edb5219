package delayq

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/delayq/pkg/queue"
)

const (
	defaultReadTimeout       = 5 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultIdleTimeout       = 60 * time.Second
	defaultReadHeaderTimeout = 2 * time.Second
	defaultShutdownTimeout   = 30 * time.Second
)

// ErrQueueRequired is returned by New without a queue.
var ErrQueueRequired = errors.New("delayq: queue is required")

// workerGroup is a set of identical worker loops on one queue.
type workerGroup struct {
	queue       string
	opts        []queue.WorkerOption
	concurrency int
}

// App runs worker loops, an optional cron scheduler and an ops HTTP server
// until it receives SIGINT or SIGTERM, or Stop is called.
type App struct {
	baseCtx   context.Context
	logger    *slog.Logger
	queue     *queue.Queue
	scheduler *queue.Scheduler
	recorder  queue.Recorder

	server       *http.Server
	router       chi.Router
	metrics      http.Handler
	healthConfig *healthConfig
	stats        singleflight.Group

	listener net.Listener
	mu       sync.RWMutex

	workers         []workerGroup
	startupHooks    []func(context.Context) error
	shutdownHooks   []func(context.Context) error
	shutdownTimeout time.Duration
	done            chan struct{}
	stopOnce        sync.Once
}

// New creates an application around q.
//
// Example:
//
//	app, err := delayq.New(q,
//	    delayq.WithLogger(log),
//	    delayq.WithWorkers("default", 4, queue.WithMaxAttempts(5)),
//	    delayq.WithWorkers("email", 1),
//	    delayq.WithHealthChecks(
//	        delayq.WithReadinessCheck("redis", redis.Healthcheck(client)),
//	    ),
//	    delayq.WithShutdownHook(redis.Shutdown(client)),
//	)
//	if err != nil {
//	    return err
//	}
//	return app.Run()
func New(q *queue.Queue, opts ...Option) (*App, error) {
	if q == nil {
		return nil, ErrQueueRequired
	}

	router := chi.NewRouter()
	a := &App{
		queue:           q,
		router:          router,
		logger:          slog.New(slog.DiscardHandler),
		shutdownTimeout: defaultShutdownTimeout,
		done:            make(chan struct{}),
		server: &http.Server{
			Addr:              ":9090",
			Handler:           router,
			ReadTimeout:       defaultReadTimeout,
			WriteTimeout:      defaultWriteTimeout,
			IdleTimeout:       defaultIdleTimeout,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	a.setupRoutes()
	return a, nil
}

// Handler returns the ops router. It is served by Run unless the server
// was disabled with WithAddress("").
func (a *App) Handler() http.Handler {
	return a.router
}

// Addr returns the ops server address, or "" before Run has started it.
func (a *App) Addr() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Queues returns the queue names workers are configured for, in order.
func (a *App) Queues() []string {
	names := make([]string, 0, len(a.workers))
	seen := make(map[string]bool, len(a.workers))
	for _, w := range a.workers {
		if !seen[w.queue] {
			seen[w.queue] = true
			names = append(names, w.queue)
		}
	}
	return names
}
