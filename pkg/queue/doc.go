// Package queue provides an at-least-once delayed job queue backed by Redis.
//
// Every named queue lives in three keys: a pending list, a delayed sorted set
// scored by ready-at time and a reserved sorted set scored by the deadline of
// jobs currently being worked on. Popping a job moves it from pending to
// reserved atomically. Ready delayed jobs and reservations past their deadline
// are moved back to pending on every pop, inside a WATCH/MULTI transaction,
// so a worker that crashes mid-job only delays that job until the visibility
// timeout passes.
//
// # Handlers
//
// A payload names its handler with a [Descriptor]. Four kinds exist and all
// of them are resolved through a [Registry]:
//
//	registry := queue.NewRegistry()
//
//	// Closure("resize"): a function registered under a key.
//	registry.RegisterClosure("resize", func(ctx context.Context, job *queue.Job, data json.RawMessage) error {
//	    return resize(ctx, data)
//	})
//
//	// Method("mailer", "Send"): a method on a registered instance.
//	registry.RegisterInstance("mailer", mailer)
//
//	// Func("reports", "Daily"): a free function.
//	registry.RegisterFunc("reports", "Daily", reports.Daily)
//
//	// Named("send_welcome"): a typed task, data decoded into its payload type.
//	queue.RegisterTask[tasks.WelcomePayload](registry, tasks.NewSendWelcome(mailer))
//
// Handlers implementing [Failer] are told when a job is given up on. Other
// failures go to the [FailureSink] configured with [WithFailureSink].
//
// # Producing
//
//	q, err := queue.New(client, queue.WithResolver(registry))
//
//	id, err := q.Push(ctx, queue.Named("send_welcome"), WelcomePayload{UserID: uid})
//	id, err = q.Push(ctx, queue.Named("send_reminder"), payload,
//	    queue.InQueue("email"),
//	    queue.ScheduledIn(24*time.Hour),
//	)
//
// # Consuming
//
// A [Worker] pops jobs one at a time. A job that returns nil is deleted, a job
// that returns an error or panics is released with one more attempt, and a job
// popped with more attempts than the ceiling is failed:
//
//	w := queue.NewWorker(q,
//	    queue.WithQueue("email"),
//	    queue.WithMaxAttempts(5),
//	    queue.WithSleep(time.Second),
//	)
//	if err := w.Run(ctx); errors.Is(err, queue.ErrMemoryLimit) {
//	    // intentional stop, let the supervisor restart the process
//	}
//
// Handlers can resolve the job themselves with [Job.Delete] or [Job.Release];
// the worker then leaves it alone.
//
// # Error Handling
//
//   - [ErrSerialization] - payload cannot be decoded, failed without retry
//   - [ErrHandlerResolution] - descriptor names an unknown handler, failed without retry
//   - [ErrHandlerExecution] - handler returned an error or panicked, released
//   - [ErrConnection] - Redis unreachable, the worker backs off and polls again
//   - [ErrMemoryLimit] - the worker stopped on purpose
package queue
