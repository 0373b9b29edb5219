package failed

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/delayq/pkg/queue"
)

// Record is a job that was given up on.
type Record struct {
	FailedAt time.Time `json:"failed_at"`
	ID       string    `json:"id"`
	Queue    string    `json:"queue"`
	JobID    string    `json:"job_id,omitempty"`
	Payload  string    `json:"payload"`
	Error    string    `json:"error"`
}

// NewRecord builds a record for a failed payload.
// JobID is left empty when the payload cannot be decoded.
func NewRecord(queueName string, payload []byte, cause error, now time.Time) Record {
	rec := Record{
		ID:       uuid.NewString(),
		Queue:    queueName,
		Payload:  string(payload),
		FailedAt: now.UTC(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if p, err := queue.DecodePayload(payload); err == nil {
		rec.JobID = p.ID
	}
	return rec
}

// Store keeps failed records so an operator can inspect and retry them.
type Store interface {
	queue.FailureSink
	List(ctx context.Context, limit int) ([]Record, error)
	Take(ctx context.Context, id string) (Record, error)
	Clear(ctx context.Context) (int64, error)
}

// Retry takes the record id out of store and pushes its payload back onto
// its queue with a fresh attempt counter. It returns the job id.
func Retry(ctx context.Context, store Store, q *queue.Queue, id string) (string, error) {
	rec, err := store.Take(ctx, id)
	if err != nil {
		return "", err
	}
	jobID, err := q.Requeue(ctx, rec.Queue, []byte(rec.Payload))
	if err != nil {
		// put it back so the record is not lost
		_ = store.Log(ctx, rec.Queue, []byte(rec.Payload), errorString(rec.Error))
		return "", err
	}
	return jobID, nil
}

type errorString string

func (e errorString) Error() string { return string(e) }

var timeNow = time.Now
