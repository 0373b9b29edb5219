package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// State is the lifecycle position of a popped job.
type State uint8

const (
	// StatePopped is the state of a job right after Pop.
	StatePopped State = iota
	// StateExecuting is set once Execute starts dispatching.
	StateExecuting
	// StateDeleted means the job left the system.
	StateDeleted
	// StateReleased means the job went back to the delayed set.
	StateReleased
	// StateFailed means the job was handed to a failure callback or sink.
	StateFailed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StatePopped:
		return "popped"
	case StateExecuting:
		return "executing"
	case StateDeleted:
		return "deleted"
	case StateReleased:
		return "released"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resolved reports whether the state is terminal for this job instance.
func (s State) Resolved() bool {
	return s == StateDeleted || s == StateReleased || s == StateFailed
}

// Job is a handle over one popped payload.
// A Job is owned by the goroutine that popped it and is not safe for
// concurrent use.
type Job struct {
	driver  *Queue
	err     error
	queue   string
	raw     string
	payload Payload
	state   State
}

func newJob(q *Queue, name, raw string) *Job {
	j := &Job{driver: q, queue: name, raw: raw}
	j.payload, j.err = DecodePayload([]byte(raw))
	return j
}

// ID returns the payload id. It is empty for undecodable payloads.
func (j *Job) ID() string { return j.payload.ID }

// Queue returns the name of the queue the job was popped from.
func (j *Job) Queue() string { return j.queue }

// Attempts returns the attempt number carried by the payload, starting at 1.
func (j *Job) Attempts() uint { return j.payload.Attempts }

// Data returns the job data.
func (j *Job) Data() json.RawMessage { return j.payload.Data }

// Payload returns the decoded payload.
func (j *Job) Payload() Payload { return j.payload }

// Raw returns the payload exactly as stored.
func (j *Job) Raw() string { return j.raw }

// State returns the current lifecycle state.
func (j *Job) State() State { return j.state }

// Err returns the decode error of a corrupt payload, or nil.
func (j *Job) Err() error { return j.err }

// IsDeleted reports whether the job was deleted.
func (j *Job) IsDeleted() bool { return j.state == StateDeleted }

// IsReleased reports whether the job was released back to the queue.
func (j *Job) IsReleased() bool { return j.state == StateReleased }

// IsDeletedOrReleased reports whether the reservation is already resolved
// by a delete or a release.
func (j *Job) IsDeletedOrReleased() bool {
	return j.state == StateDeleted || j.state == StateReleased
}

// LogValue implements slog.LogValuer.
func (j *Job) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("queue", j.queue),
		slog.String("id", j.payload.ID),
		slog.Uint64("attempts", uint64(j.payload.Attempts)),
		slog.String("state", j.state.String()),
	)
}

// Execute runs the handler named by the payload.
// When the handler succeeds without deleting or releasing the job itself,
// the job is deleted. A handler error leaves the job unresolved so the
// caller can release it.
func (j *Job) Execute(ctx context.Context) (State, error) {
	if j.state.Resolved() {
		return j.state, nil
	}
	if j.err != nil {
		return j.state, j.err
	}

	j.state = StateExecuting
	j.driver.fire(ctx, j.driver.beforeExecute, j)

	res, err := j.driver.resolver.Resolve(j.payload.Handler)
	if err != nil {
		return j.state, err
	}

	if err := j.dispatch(ctx, res.Handler); err != nil {
		return j.state, err
	}

	if !j.IsDeletedOrReleased() {
		return j.Delete(ctx)
	}
	return j.state, nil
}

func (j *Job) dispatch(ctx context.Context, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrHandlerExecution, r)
		}
	}()

	if err := h.Handle(ctx, j, j.payload.Data); err != nil {
		return errors.Join(ErrHandlerExecution, err)
	}
	return nil
}

// Delete removes the reservation. Calling it on a job that is already
// resolved does nothing.
func (j *Job) Delete(ctx context.Context) (State, error) {
	if j.state.Resolved() {
		return j.state, nil
	}

	j.driver.fire(ctx, j.driver.beforeDelete, j)

	if err := j.driver.Delete(ctx, j.queue, j.raw); err != nil {
		return j.state, err
	}
	j.state = StateDeleted
	return j.state, nil
}

// Release drops the reservation and schedules the job again after delay
// with one more attempt. Calling it on a resolved job does nothing.
func (j *Job) Release(ctx context.Context, delay time.Duration) (State, error) {
	if j.state.Resolved() {
		return j.state, nil
	}
	if j.err != nil {
		return j.state, j.err
	}

	j.driver.fire(ctx, j.driver.beforeDelete, j)

	if err := j.driver.Release(ctx, j.queue, j.raw, delay, j.payload.Attempts+1); err != nil {
		return j.state, err
	}
	j.state = StateReleased
	return j.state, nil
}

// Failed gives up on the job. The handler's failure callback is called when
// it has one; otherwise the job goes to the failure sink if failure logging
// is enabled. The reservation is removed only when that step succeeded, so a
// job whose failure could not be recorded shows up again after the
// visibility timeout. Without reservations such a job is logged and lost.
func (j *Job) Failed(ctx context.Context, cause error) error {
	if j.state.Resolved() {
		return nil
	}
	j.state = StateFailed

	if err := j.reportFailure(ctx, cause); err != nil {
		if j.driver.visibility <= 0 {
			j.driver.logger.ErrorContext(ctx, "failed job dropped",
				slog.String("queue", j.queue),
				slog.String("payload", j.raw),
				slog.Any("cause", cause),
				slog.Any("error", err),
			)
		}
		return err
	}
	return j.driver.Delete(ctx, j.queue, j.raw)
}

func (j *Job) reportFailure(ctx context.Context, cause error) error {
	if j.err == nil {
		res, err := j.driver.resolver.Resolve(j.payload.Handler)
		if err == nil && res.Failer != nil {
			return j.callFailer(ctx, res.Failer)
		}
	}

	if !j.driver.logFailures || j.driver.sink == nil {
		return nil
	}
	return j.driver.sink.Log(ctx, j.queue, []byte(j.raw), cause)
}

func (j *Job) callFailer(ctx context.Context, f Failer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: failure callback panic: %v", ErrHandlerExecution, r)
		}
	}()
	return f.Failed(ctx, j, j.payload.Data)
}
