package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/delayq/internal/config"
	"github.com/dmitrymomot/delayq/internal/tasks"
	"github.com/dmitrymomot/delayq/pkg/db"
	"github.com/dmitrymomot/delayq/pkg/failed"
	"github.com/dmitrymomot/delayq/pkg/logger"
	"github.com/dmitrymomot/delayq/pkg/queue"
	"github.com/dmitrymomot/delayq/pkg/redis"
)

// ErrNoFailureStore is returned by commands that need a failure store when
// failed.store is "none".
var ErrNoFailureStore = errors.New("cli: failed.store is none")

// runtime holds what a command connected to. close releases it in reverse
// order.
type runtime struct {
	log     *slog.Logger
	client  goredis.UniversalClient
	pool    *pgxpool.Pool
	closers []func(context.Context) error
	cfg     config.Config
}

func newRuntime(ctx context.Context, path string, logOut io.Writer) (*runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewWithWriter(logOut, cfg.Log, logger.JobExtractors()...)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, log: log}
	client, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	rt.client = client
	rt.closers = append(rt.closers, redis.Shutdown(client))
	return rt, nil
}

// database connects to Postgres once.
func (rt *runtime) database(ctx context.Context) (*pgxpool.Pool, error) {
	if rt.pool != nil {
		return rt.pool, nil
	}
	if !rt.cfg.Database.Enabled() {
		return nil, fmt.Errorf("%w: database.url is empty", config.ErrInvalid)
	}
	pool, err := db.Connect(ctx, rt.cfg.Database)
	if err != nil {
		return nil, err
	}
	rt.pool = pool
	rt.closers = append(rt.closers, db.Shutdown(pool))
	return pool, nil
}

// store returns the queryable failure store selected by failed.store.
func (rt *runtime) store(ctx context.Context) (failed.Store, error) {
	switch rt.cfg.Failed.Store {
	case config.StoreRedis:
		return failed.NewRedisSink(rt.client,
			failed.WithKey(rt.cfg.Failed.RedisKey),
			failed.WithMaxLen(rt.cfg.Failed.RedisMaxLen),
		)
	case config.StorePostgres:
		pool, err := rt.database(ctx)
		if err != nil {
			return nil, err
		}
		return failed.NewPostgresSink(pool, failed.WithRetention(rt.cfg.Failed.Retention))
	default:
		return nil, ErrNoFailureStore
	}
}

// sink combines the log sink, the store and any archive sinks.
func (rt *runtime) sink(ctx context.Context) (queue.FailureSink, error) {
	sinks := []queue.FailureSink{failed.NewLogSink(rt.log)}

	store, err := rt.store(ctx)
	switch {
	case err == nil:
		sinks = append(sinks, store)
	case !errors.Is(err, ErrNoFailureStore):
		return nil, err
	}

	if rt.cfg.Failed.S3.Bucket != "" {
		s3Sink, err := failed.NewS3Sink(rt.cfg.Failed.S3)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3Sink)
	}
	if rt.cfg.Failed.Sentry {
		sentrySink := failed.NewSentrySink(nil)
		sinks = append(sinks, sentrySink)
		rt.closers = append(rt.closers, func(context.Context) error {
			sentrySink.Flush()
			return nil
		})
	}
	return failed.Multi(sinks...), nil
}

// queue builds the driver. Handlers are only needed by commands that run
// or fail jobs, so registry may be nil.
func (rt *runtime) queue(registry *queue.Registry, sink queue.FailureSink, opts ...queue.Option) (*queue.Queue, error) {
	opts = append(rt.cfg.Queue.Options(), opts...)
	opts = append(opts, queue.WithLogger(rt.log))
	if registry != nil {
		opts = append(opts, queue.WithResolver(registry))
	}
	if sink != nil {
		opts = append(opts, queue.WithFailureSink(sink))
	}
	return queue.New(rt.client, opts...)
}

func (rt *runtime) registry() (*queue.Registry, error) {
	registry := queue.NewRegistry()
	if err := tasks.Register(registry, rt.log, nil); err != nil {
		return nil, err
	}
	return registry, nil
}

func (rt *runtime) close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// hooks hands the closers over to the app, which runs them on shutdown.
func (rt *runtime) hooks() []func(context.Context) error {
	hooks := make([]func(context.Context) error, 0, len(rt.closers))
	for i := len(rt.closers) - 1; i >= 0; i-- {
		hooks = append(hooks, rt.closers[i])
	}
	rt.closers = nil
	return hooks
}
