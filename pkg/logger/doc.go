// Package logger builds the slog logger used by delayq processes.
//
// [New] picks a JSON or text handler at the configured level, optionally fans
// records out to Sentry and wraps the result with a [LogHandlerDecorator]
// that injects attributes taken from the context:
//
//	log, err := logger.New(logger.Config{Level: "debug", Format: "text"},
//	    logger.JobExtractors()...,
//	)
//
// Workers attach the job they process to the context (see
// queue.ContextWithJob), so anything a handler logs with the context it was
// given carries job_id and attempts:
//
//	func (t *SendWelcome) Handle(ctx context.Context, p WelcomePayload) error {
//	    t.log.InfoContext(ctx, "sending welcome email", "to", p.Email)
//	    ...
//	}
//
// # Sentry
//
// Set SENTRY_DSN to also send warnings and errors to Sentry. Error records
// become issues, warnings are kept as logs. An empty DSN or a failed SDK
// init leaves only the local handler.
package logger
