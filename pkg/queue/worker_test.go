package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observed struct {
	queue string
	state State
}

type fakeRecorder struct {
	jobs       []observed
	pollErrors int
	mu         sync.Mutex
}

func (r *fakeRecorder) ObserveJob(queue string, state State, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, observed{queue: queue, state: state})
}

func (r *fakeRecorder) ObservePollError(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pollErrors++
}

func TestWorker_SuccessDeletes(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	var handled int
	require.NoError(t, registry.RegisterClosure("ok", func(context.Context, *Job, json.RawMessage) error {
		handled++
		return nil
	}))
	q, _, _ := newTestQueue(t, WithResolver(registry))
	ctx := context.Background()

	_, err := q.Push(ctx, Closure("ok"), nil)
	require.NoError(t, err)

	rec := &fakeRecorder{}
	w := NewWorker(q, WithRecorder(rec))

	processed, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 1, handled)
	assert.Equal(t, []observed{{queue: defaultQueue, state: StateDeleted}}, rec.jobs)

	stats, err := q.Stats(ctx, defaultQueue)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	processed, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestWorker_FailureReleases(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	require.NoError(t, registry.RegisterClosure("error", func(context.Context, *Job, json.RawMessage) error {
		return errors.New("temporary")
	}))
	require.NoError(t, registry.RegisterClosure("panic", func(context.Context, *Job, json.RawMessage) error {
		panic("unexpected")
	}))

	for _, key := range []string{"error", "panic"} {
		t.Run(key, func(t *testing.T) {
			t.Parallel()

			q, _, clock := newTestQueue(t, WithResolver(registry))
			ctx := context.Background()

			id, err := q.Push(ctx, Closure(key), nil)
			require.NoError(t, err)

			w := NewWorker(q, WithReleaseDelay(30*time.Second))
			processed, err := w.RunOnce(ctx)
			require.NoError(t, err)
			require.True(t, processed)

			stats, err := q.Stats(ctx, defaultQueue)
			require.NoError(t, err)
			assert.Equal(t, Stats{Delayed: 1}, stats)

			clock.Advance(30 * time.Second)
			job, err := q.Pop(ctx, defaultQueue)
			require.NoError(t, err)
			require.NotNil(t, job)
			assert.Equal(t, id, job.ID())
			assert.Equal(t, uint(2), job.Attempts())
		})
	}
}

func TestWorker_AttemptCeiling(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	var handled int
	require.NoError(t, registry.RegisterNamed("counted", func() (Handler, error) {
		return HandlerFunc(func(context.Context, *Job, json.RawMessage) error {
			handled++
			return nil
		}), nil
	}))

	sink := &memorySink{}
	q, mr, _ := newTestQueue(t, WithResolver(registry), WithFailureSink(sink))
	ctx := context.Background()

	raw := `{"id":"j-4","handler":{"kind":"named","target":"counted"},"attempts":4}`
	_, err := mr.RPush("queues:default", raw)
	require.NoError(t, err)

	w := NewWorker(q, WithMaxAttempts(3))
	processed, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, processed)

	assert.Zero(t, handled)
	require.Len(t, sink.failures, 1)
	assert.Equal(t, raw, sink.failures[0].payload)
	assert.ErrorIs(t, sink.failures[0].cause, ErrAttemptsExceeded)

	stats, err := q.Stats(ctx, defaultQueue)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestWorker_AttemptCeilingAllowsLastAttempt(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	var handled int
	require.NoError(t, registry.RegisterClosure("counted", func(context.Context, *Job, json.RawMessage) error {
		handled++
		return nil
	}))

	q, mr, _ := newTestQueue(t, WithResolver(registry))
	_, err := mr.RPush("queues:default", `{"id":"j-3","handler":{"kind":"closure","target":"counted"},"attempts":3}`)
	require.NoError(t, err)

	_, err = NewWorker(q, WithMaxAttempts(3)).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handled)
}

func TestWorker_RetriesUntilCeiling(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	var handled int
	require.NoError(t, registry.RegisterClosure("flaky", func(context.Context, *Job, json.RawMessage) error {
		handled++
		return errors.New("still broken")
	}))

	sink := &memorySink{}
	q, _, _ := newTestQueue(t, WithResolver(registry), WithFailureSink(sink))
	ctx := context.Background()

	_, err := q.Push(ctx, Closure("flaky"), nil)
	require.NoError(t, err)

	w := NewWorker(q, WithMaxAttempts(3))
	for range 4 {
		processed, err := w.RunOnce(ctx)
		require.NoError(t, err)
		require.True(t, processed)
	}

	assert.Equal(t, 3, handled)
	require.Len(t, sink.failures, 1)

	depth, err := q.Depth(ctx, defaultQueue)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestWorker_BrokenJobsFailWithoutRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		raw   string
		cause error
	}{
		{
			name:  "corrupt payload",
			raw:   "definitely not json",
			cause: ErrSerialization,
		},
		{
			name:  "unknown handler",
			raw:   `{"id":"j-1","handler":{"kind":"named","target":"ghost"},"attempts":1}`,
			cause: ErrHandlerResolution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &memorySink{}
			q, mr, clock := newTestQueue(t, WithFailureSink(sink))
			ctx := context.Background()

			_, err := mr.RPush("queues:default", tt.raw)
			require.NoError(t, err)

			_, err = NewWorker(q).RunOnce(ctx)
			require.NoError(t, err)

			require.Len(t, sink.failures, 1)
			assert.ErrorIs(t, sink.failures[0].cause, tt.cause)
			assert.Equal(t, tt.raw, sink.failures[0].payload)

			clock.Advance(time.Hour)
			stats, err := q.Stats(ctx, defaultQueue)
			require.NoError(t, err)
			assert.Equal(t, Stats{}, stats)
		})
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	q, _, _ := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- NewWorker(q, WithSleep(10*time.Millisecond), WithMemoryLimit(0)).Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_RunStopsOnMemoryLimit(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	var handled int
	require.NoError(t, registry.RegisterClosure("ok", func(context.Context, *Job, json.RawMessage) error {
		handled++
		return nil
	}))
	q, _, _ := newTestQueue(t, WithResolver(registry))
	ctx := context.Background()

	for range 3 {
		_, err := q.Push(ctx, Closure("ok"), nil)
		require.NoError(t, err)
	}

	w := NewWorker(q,
		WithMemoryLimit(64),
		withMemoryUsage(func() uint64 { return 65 << 20 }),
	)

	err := w.Run(ctx)
	require.ErrorIs(t, err, ErrMemoryLimit)
	assert.Equal(t, 1, handled)

	depth, err := q.Depth(ctx, defaultQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

func TestWorker_PollErrorBacksOff(t *testing.T) {
	t.Parallel()

	q, mr, _ := newTestQueue(t)
	mr.Close()

	rec := &fakeRecorder{}
	w := NewWorker(q, WithRecorder(rec), WithSleep(time.Second), WithMaxBackoff(3*time.Second))

	_, err := w.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, 1, rec.pollErrors)

	for failures, want := range map[int]time.Duration{1: time.Second, 2: 2 * time.Second, 5: 3 * time.Second} {
		w.failures = failures
		assert.Equal(t, want, w.backoff())
	}
}

func TestWorker_JobInContext(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	var fromCtx *Job
	require.NoError(t, registry.RegisterClosure("ctx", func(ctx context.Context, job *Job, _ json.RawMessage) error {
		fromCtx, _ = JobFromContext(ctx)
		return nil
	}))
	q, _, _ := newTestQueue(t, WithResolver(registry))

	_, err := q.Push(context.Background(), Closure("ctx"), nil)
	require.NoError(t, err)

	_, err = NewWorker(q).RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, fromCtx)
	assert.Equal(t, defaultQueue, fromCtx.Queue())
}
