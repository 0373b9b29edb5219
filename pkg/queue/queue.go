package queue

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// popScript moves the head of the pending list into the reserved set.
// KEYS[1] pending, KEYS[2] reserved, ARGV[1] reservation deadline.
var popScript = redis.NewScript(`
local job = redis.call('lpop', KEYS[1])
if job then
	redis.call('zadd', KEYS[2], ARGV[1], job)
end
return job
`)

// Queue is the Redis driver. Each named queue uses three keys:
// a pending list, a delayed sorted set and a reserved sorted set.
// Queue is safe for concurrent use.
type Queue struct {
	client           redis.UniversalClient
	resolver         Resolver
	sink             FailureSink
	logger           *slog.Logger
	now              func() time.Time
	prefix           string
	beforeExecute    []HookFunc
	beforeDelete     []HookFunc
	visibility       time.Duration
	migrationRetries int
	logFailures      bool
}

// Stats holds the size of each region of a queue.
type Stats struct {
	Pending  int64 `json:"pending"`
	Delayed  int64 `json:"delayed"`
	Reserved int64 `json:"reserved"`
}

// Depth is the number of jobs waiting to run: pending plus delayed.
func (s Stats) Depth() int64 {
	return s.Pending + s.Delayed
}

// New creates a queue driver on top of client.
//
// Example:
//
//	registry := queue.NewRegistry()
//	q, err := queue.New(client,
//	    queue.WithResolver(registry),
//	    queue.WithVisibilityTimeout(90*time.Second),
//	)
func New(client redis.UniversalClient, opts ...Option) (*Queue, error) {
	if client == nil {
		return nil, ErrClientRequired
	}

	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = discardLogger()
	}
	if cfg.resolver == nil {
		cfg.resolver = NewRegistry()
	}

	return &Queue{
		client:           client,
		resolver:         cfg.resolver,
		sink:             cfg.sink,
		logger:           cfg.logger,
		now:              cfg.now,
		prefix:           cfg.prefix,
		beforeExecute:    cfg.beforeExecute,
		beforeDelete:     cfg.beforeDelete,
		visibility:       cfg.visibility,
		migrationRetries: cfg.migrationRetries,
		logFailures:      cfg.logFailures,
	}, nil
}

type keys struct {
	pending  string
	delayed  string
	reserved string
}

func (q *Queue) keys(name string) keys {
	base := q.prefix + name
	return keys{
		pending:  base,
		delayed:  base + ":delayed",
		reserved: base + ":reserved",
	}
}

// Push stores a new job and returns its id.
// Without a schedule option the job goes to the pending list, otherwise
// it waits in the delayed set until it is ready.
func (q *Queue) Push(ctx context.Context, d Descriptor, data any, opts ...PushOption) (string, error) {
	pc := &pushConfig{queue: defaultQueue}
	for _, opt := range opts {
		opt(pc)
	}

	p, err := newPayload(d, data)
	if err != nil {
		return "", err
	}
	raw, err := encodePayload(p)
	if err != nil {
		return "", err
	}

	k := q.keys(pc.queue)
	if at := pc.readyAt(q.now()); !at.IsZero() {
		err = q.client.ZAdd(ctx, k.delayed, redis.Z{Score: readyScore(at), Member: raw}).Err()
	} else {
		err = q.client.RPush(ctx, k.pending, raw).Err()
	}
	if err != nil {
		return "", errors.Join(ErrConnection, err)
	}

	q.logger.DebugContext(ctx, "job pushed",
		slog.String("queue", pc.queue),
		slog.String("job_id", p.ID),
		slog.String("handler", d.String()),
	)

	return p.ID, nil
}

// Pop reclaims expired entries and then takes the head of the pending list.
// The job is reserved until the visibility timeout passes.
// Pop returns nil and no error when the queue is empty.
func (q *Queue) Pop(ctx context.Context, name string) (*Job, error) {
	if name == "" {
		return nil, ErrEmptyQueue
	}
	if err := q.MigrateExpired(ctx, name); err != nil {
		return nil, err
	}

	k := q.keys(name)

	var (
		raw string
		err error
	)
	if q.visibility > 0 {
		deadline := readyScore(q.now().Add(q.visibility))
		raw, err = popScript.Run(ctx, q.client, []string{k.pending, k.reserved}, deadline).Text()
	} else {
		raw, err = q.client.LPop(ctx, k.pending).Result()
	}
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrConnection, err)
	}

	return newJob(q, name, raw), nil
}

// Release drops the reservation of raw and schedules the job again after
// delay with its attempts field set to attempts. Both steps run in one
// transaction.
func (q *Queue) Release(ctx context.Context, name, raw string, delay time.Duration, attempts uint) error {
	updated, err := rewriteAttempts(raw, attempts)
	if err != nil {
		return err
	}

	k := q.keys(name)
	now := q.now()
	readyAt := float64(cutoff(now))
	if delay > 0 {
		readyAt = readyScore(now.Add(delay))
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, k.reserved, raw)
		pipe.ZAdd(ctx, k.delayed, redis.Z{Score: readyAt, Member: updated})
		return nil
	})
	if err != nil {
		return errors.Join(ErrConnection, err)
	}
	return nil
}

// Delete removes the reservation of raw. The job leaves the system.
func (q *Queue) Delete(ctx context.Context, name, raw string) error {
	if err := q.client.ZRem(ctx, q.keys(name).reserved, raw).Err(); err != nil {
		return errors.Join(ErrConnection, err)
	}
	return nil
}

// MigrateExpired moves ready delayed jobs and expired reservations back to
// the tail of the pending list, earliest first.
func (q *Queue) MigrateExpired(ctx context.Context, name string) error {
	k := q.keys(name)
	if err := q.migrate(ctx, k.delayed, k.pending); err != nil {
		return err
	}
	return q.migrate(ctx, k.reserved, k.pending)
}

// migrate moves every member of from scored at or before now onto to.
// The source key is watched so a concurrent writer aborts the transaction
// and the read is repeated.
func (q *Queue) migrate(ctx context.Context, from, to string) error {
	for range q.migrationRetries {
		upper := strconv.FormatInt(cutoff(q.now()), 10)

		err := q.client.Watch(ctx, func(tx *redis.Tx) error {
			jobs, err := tx.ZRangeByScore(ctx, from, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				return nil
			}

			members := make([]any, len(jobs))
			for i, job := range jobs {
				members[i] = job
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.ZRemRangeByScore(ctx, from, "-inf", upper)
				pipe.RPush(ctx, to, members...)
				return nil
			})
			return err
		}, from)

		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return errors.Join(ErrConnection, err)
		}

		q.logger.DebugContext(ctx, "migration conflict, retrying", slog.String("key", from))
	}

	q.logger.WarnContext(ctx, "migration skipped after repeated conflicts",
		slog.String("key", from),
		slog.Int("retries", q.migrationRetries),
	)
	return nil
}

// Depth returns the number of pending and delayed jobs.
// Reserved jobs are in flight and not counted.
func (q *Queue) Depth(ctx context.Context, name string) (int64, error) {
	s, err := q.Stats(ctx, name)
	if err != nil {
		return 0, err
	}
	return s.Depth(), nil
}

// Stats returns the size of every region of the queue.
func (q *Queue) Stats(ctx context.Context, name string) (Stats, error) {
	k := q.keys(name)

	var pending, delayed, reserved *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pending = pipe.LLen(ctx, k.pending)
		delayed = pipe.ZCard(ctx, k.delayed)
		reserved = pipe.ZCard(ctx, k.reserved)
		return nil
	})
	if err != nil {
		return Stats{}, errors.Join(ErrConnection, err)
	}

	return Stats{
		Pending:  pending.Val(),
		Delayed:  delayed.Val(),
		Reserved: reserved.Val(),
	}, nil
}

// Flush deletes every job of the queue in all three regions.
func (q *Queue) Flush(ctx context.Context, name string) error {
	k := q.keys(name)
	if err := q.client.Del(ctx, k.pending, k.delayed, k.reserved).Err(); err != nil {
		return errors.Join(ErrConnection, err)
	}
	q.logger.InfoContext(ctx, "queue flushed", slog.String("queue", name))
	return nil
}

// Requeue puts a previously failed payload back on the pending list with its
// attempts reset to 1. It returns the job id.
func (q *Queue) Requeue(ctx context.Context, name string, raw []byte) (string, error) {
	p, err := DecodePayload(raw)
	if err != nil {
		return "", err
	}
	fresh, err := rewriteAttempts(string(raw), 1)
	if err != nil {
		return "", err
	}
	if err := q.client.RPush(ctx, q.keys(name).pending, fresh).Err(); err != nil {
		return "", errors.Join(ErrConnection, err)
	}
	return p.ID, nil
}

func (q *Queue) fire(ctx context.Context, hooks []HookFunc, job *Job) {
	for _, hook := range hooks {
		hook(ctx, job)
	}
}

// readyScore converts t to the unix seconds stored as sorted set scores,
// rounded up so an entry never becomes visible before t.
func readyScore(t time.Time) float64 {
	s := t.Unix()
	if t.Nanosecond() > 0 {
		s++
	}
	return float64(s)
}

// cutoff is the highest score that is due at now.
func cutoff(now time.Time) int64 {
	return now.Unix()
}
