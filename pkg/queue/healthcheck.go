package queue

import (
	"context"
	"errors"
)

var errQueueNil = errors.New("queue is nil")

// Healthcheck returns a health check function that pings the queue storage.
// Compatible with health.CheckFunc.
func Healthcheck(q *Queue) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if q == nil {
			return errors.Join(ErrHealthcheckFailed, errQueueNil)
		}
		if err := q.client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
