package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/delayq"
	"github.com/dmitrymomot/delayq/internal/config"
	"github.com/dmitrymomot/delayq/pkg/db"
	"github.com/dmitrymomot/delayq/pkg/failed"
	"github.com/dmitrymomot/delayq/pkg/metrics"
	"github.com/dmitrymomot/delayq/pkg/queue"
	"github.com/dmitrymomot/delayq/pkg/redis"
)

func newWorkCommand(load loader) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "work",
		Short: "Run the workers, the scheduler and the ops server",
		Long: `Run the configured worker groups until SIGINT or SIGTERM.

With --once every worker group processes at most one job and the command
exits. Useful from cron or to drain a queue by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if once {
				return withRuntime(cmd, load, func(rt *runtime) error {
					return rt.workOnce(cmd.Context(), cmd.OutOrStdout())
				})
			}

			rt, err := load(cmd)
			if err != nil {
				return err
			}
			app, err := rt.app(cmd.Context())
			if err != nil {
				return joinClose(cmd.Context(), rt, err)
			}
			return app.Run()
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "process at most one job per worker group and exit")
	return cmd
}

// consumer builds a queue able to run and fail jobs.
func (rt *runtime) consumer(ctx context.Context) (*queue.Queue, *queue.Registry, error) {
	registry, err := rt.registry()
	if err != nil {
		return nil, nil, err
	}
	sink, err := rt.sink(ctx)
	if err != nil {
		return nil, nil, err
	}
	q, err := rt.queue(registry, sink)
	if err != nil {
		return nil, nil, err
	}
	return q, registry, nil
}

func (rt *runtime) workOnce(ctx context.Context, out io.Writer) error {
	q, _, err := rt.consumer(ctx)
	if err != nil {
		return err
	}

	for _, group := range rt.cfg.WorkerGroups() {
		opts := append(group.Options(), queue.WithQueue(group.Queue), queue.WithWorkerLogger(rt.log))
		processed, err := queue.NewWorker(q, opts...).RunOnce(ctx)
		if err != nil {
			return err
		}
		result := "empty"
		if processed {
			result = "processed"
		}
		if _, err := fmt.Fprintf(out, "%s: %s\n", group.Queue, result); err != nil {
			return err
		}
	}
	return nil
}

// app wires the configured queue, workers and scheduler into a delayq.App.
// The app owns the runtime from here on and closes it on shutdown.
func (rt *runtime) app(ctx context.Context) (*delayq.App, error) {
	q, registry, err := rt.consumer(ctx)
	if err != nil {
		return nil, err
	}

	opts := []delayq.Option{
		delayq.WithContext(ctx),
		delayq.WithLogger(rt.log),
		delayq.WithAddress(rt.cfg.Ops.Address),
		delayq.WithShutdownTimeout(rt.cfg.Ops.ShutdownTimeout),
	}

	queues := make([]string, 0, len(rt.cfg.WorkerGroups()))
	for _, w := range rt.cfg.WorkerGroups() {
		opts = append(opts, delayq.WithWorkers(w.Queue, w.Concurrency, w.Options()...))
		queues = append(queues, w.Queue)
	}

	if rt.cfg.Ops.Metrics {
		reg := metrics.NewRegistry()
		recorder, err := metrics.NewRecorder(reg, "")
		if err != nil {
			return nil, err
		}
		if err := reg.Register(metrics.NewDepthCollector(q, "", queues...)); err != nil {
			return nil, err
		}
		opts = append(opts,
			delayq.WithRecorder(recorder),
			delayq.WithMetricsHandler(metrics.Handler(reg)),
		)
	}

	health := []delayq.HealthOption{
		delayq.WithReadinessCheck("redis", redis.Healthcheck(rt.client)),
	}
	if rt.pool != nil {
		health = append(health, delayq.WithReadinessCheck("database", db.Healthcheck(rt.pool)))
	}
	opts = append(opts, delayq.WithHealthChecks(health...))

	if len(rt.cfg.Schedules) > 0 {
		scheduler, err := rt.scheduler(q, registry)
		if err != nil {
			return nil, err
		}
		opts = append(opts, delayq.WithScheduler(scheduler))
	}

	if rt.pool != nil && rt.cfg.Failed.Store == config.StorePostgres {
		pool := rt.pool
		opts = append(opts, delayq.WithStartupHook(func(ctx context.Context) error {
			return failed.Migrate(ctx, pool, rt.log)
		}))
	}
	for _, hook := range rt.hooks() {
		opts = append(opts, delayq.WithShutdownHook(hook))
	}

	return delayq.New(q, opts...)
}

func (rt *runtime) scheduler(q *queue.Queue, registry *queue.Registry) (*queue.Scheduler, error) {
	s := queue.NewScheduler(q, queue.WithSchedulerLogger(rt.log))
	known := make(map[string]bool)
	for _, name := range registry.Names() {
		known[name] = true
	}

	for _, entry := range rt.cfg.Schedules {
		if !known[entry.Handler] {
			rt.log.Warn("schedule names an unregistered handler, jobs will fail",
				slog.String("handler", entry.Handler),
				slog.String("spec", entry.Spec),
			)
		}
		var opts []queue.PushOption
		if entry.Queue != "" {
			opts = append(opts, queue.InQueue(entry.Queue))
		}
		if err := s.Add(entry.Spec, queue.Named(entry.Handler), entry.Data, opts...); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func joinClose(ctx context.Context, rt *runtime, err error) error {
	if cerr := rt.close(context.WithoutCancel(ctx)); cerr != nil {
		rt.log.Error("failed to release resources", slog.Any("error", cerr))
	}
	return err
}
