package queue

import "errors"

// Queue errors.
var (
	// ErrClientRequired is returned when a queue is created without a Redis client.
	ErrClientRequired = errors.New("queue: redis client is required")

	// ErrEmptyQueue is returned when an operation receives an empty queue name.
	ErrEmptyQueue = errors.New("queue: queue name is empty")

	// ErrInvalidDescriptor is returned when a handler descriptor is incomplete
	// or carries an unknown kind.
	ErrInvalidDescriptor = errors.New("queue: invalid handler descriptor")

	// ErrSerialization is returned when a payload cannot be encoded or decoded.
	// Jobs failing with this error are never re-queued.
	ErrSerialization = errors.New("queue: payload serialization failed")

	// ErrHandlerResolution is returned when a descriptor names a handler
	// that the resolver cannot provide.
	ErrHandlerResolution = errors.New("queue: handler resolution failed")

	// ErrHandlerExecution wraps errors and panics raised by a handler.
	ErrHandlerExecution = errors.New("queue: handler execution failed")

	// ErrConnection wraps storage errors returned by the Redis client.
	ErrConnection = errors.New("queue: storage unavailable")

	// ErrDuplicateHandler is returned when a handler is registered twice
	// under the same key.
	ErrDuplicateHandler = errors.New("queue: handler already registered")

	// ErrAttemptsExceeded is passed to Job.Failed when a job went over
	// the worker attempt ceiling.
	ErrAttemptsExceeded = errors.New("queue: max attempts exceeded")

	// ErrMemoryLimit is returned by Worker.Run when the process went over
	// the configured memory ceiling. It signals an intentional stop.
	ErrMemoryLimit = errors.New("queue: memory limit reached")

	// ErrInvalidSchedule is returned when a cron expression cannot be parsed.
	ErrInvalidSchedule = errors.New("queue: invalid schedule")

	// ErrHealthcheckFailed is returned when the queue health check fails.
	ErrHealthcheckFailed = errors.New("queue: healthcheck failed")
)
