// Package delayq runs an at-least-once delayed job queue on Redis.
//
// The queue itself lives in [github.com/dmitrymomot/delayq/pkg/queue]. This
// package ties a queue to a long-running process: [App] runs worker loops,
// an optional cron scheduler and a small ops HTTP server, and shuts all of
// them down gracefully on SIGINT or SIGTERM.
//
// # Quick Start
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//	    return err
//	}
//
//	registry := queue.NewRegistry()
//	queue.RegisterTask[tasks.LogPayload](registry, tasks.NewLog(log))
//
//	q, err := queue.New(client,
//	    queue.WithResolver(registry),
//	    queue.WithFailureSink(failed.NewLogSink(log)),
//	)
//	if err != nil {
//	    return err
//	}
//
//	app, err := delayq.New(q,
//	    delayq.WithLogger(log),
//	    delayq.WithWorkers("default", 4),
//	    delayq.WithHealthChecks(),
//	    delayq.WithShutdownHook(redis.Shutdown(client)),
//	)
//	if err != nil {
//	    return err
//	}
//	return app.Run()
//
// # Ops Server
//
// Unless disabled with WithAddress(""), Run serves:
//
//	GET /health/live    - liveness, always 200
//	GET /health/ready   - readiness, runs the queue check and any WithReadinessCheck
//	GET /metrics        - the handler given to WithMetricsHandler
//	GET /queues         - stats of every queue with workers
//	GET /queues/{name}  - stats of one queue
//
// # Shutdown
//
// On shutdown the workers finish the job they hold, then the ops server and
// the scheduler stop and the shutdown hooks run, all within the shutdown
// timeout. A worker that reaches its memory limit stops the application and
// Run returns queue.ErrMemoryLimit.
package delayq
