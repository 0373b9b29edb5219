// Package failed provides sinks for jobs that were given up on.
//
// A sink receives the raw payload of a job whose handler has no failure
// callback, together with the cause. Every sink implements
// queue.FailureSink:
//
//   - [LogSink] writes an error record through slog
//   - [RedisSink] keeps records in a capped Redis list
//   - [PostgresSink] keeps records in the failed_jobs table (see [Migrate])
//   - [S3Sink] archives each record as a JSON object
//   - [SentrySink] reports each failure as a Sentry issue
//
// [Multi] fans out to several sinks:
//
//	store, _ := failed.NewRedisSink(client)
//	q, err := queue.New(client,
//	    queue.WithFailureSink(failed.Multi(store, failed.NewLogSink(log))),
//	)
//
// The Redis and Postgres sinks implement [Store], so failed jobs can be
// listed and pushed back with [Retry]:
//
//	records, err := store.List(ctx, 20)
//	jobID, err := failed.Retry(ctx, store, q, records[0].ID)
package failed
