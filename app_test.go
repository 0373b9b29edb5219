package delayq_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/delayq"
	"github.com/dmitrymomot/delayq/pkg/queue"
)

func newQueue(t *testing.T, opts ...queue.Option) (*queue.Queue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q, err := queue.New(client, opts...)
	require.NoError(t, err)
	return q, mr
}

func TestNew_RequiresQueue(t *testing.T) {
	t.Parallel()

	app, err := delayq.New(nil)
	require.ErrorIs(t, err, delayq.ErrQueueRequired)
	assert.Nil(t, app)
}

func TestApp_QueueEndpoints(t *testing.T) {
	t.Parallel()

	q, _ := newQueue(t)
	ctx := context.Background()
	for range 2 {
		_, err := q.Push(ctx, queue.Named("x"), nil, queue.InQueue("email"))
		require.NoError(t, err)
	}
	_, err := q.Push(ctx, queue.Named("x"), nil, queue.InQueue("email"), queue.ScheduledIn(time.Hour))
	require.NoError(t, err)

	app, err := delayq.New(q,
		delayq.WithWorkers("email", 2),
		delayq.WithWorkers("default", 1),
		delayq.WithWorkers("email", 1),
		delayq.WithWorkers("ignored", 0),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "default"}, app.Queues())

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queues/email", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var one struct {
		Name     string `json:"name"`
		Pending  int64  `json:"pending"`
		Delayed  int64  `json:"delayed"`
		Reserved int64  `json:"reserved"`
		Depth    int64  `json:"depth"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&one))
	assert.Equal(t, "email", one.Name)
	assert.Equal(t, int64(2), one.Pending)
	assert.Equal(t, int64(1), one.Delayed)
	assert.Equal(t, int64(3), one.Depth)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queues", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	require.Len(t, all, 2)
	assert.Equal(t, "default", all[1]["name"])
}

func TestApp_QueueEndpointStorageDown(t *testing.T) {
	t.Parallel()

	q, mr := newQueue(t)
	app, err := delayq.New(q)
	require.NoError(t, err)
	mr.Close()

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queues/default", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestApp_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	q, _ := newQueue(t)
	app, err := delayq.New(q,
		delayq.WithHealthChecks(
			delayq.WithReadinessCheck("db", func(context.Context) error { return errors.New("db down") }),
			delayq.WithReadinessPath("/ready"),
		),
		delayq.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		})),
	)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready?format=json", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Checks map[string]struct {
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Checks["queue"].Status)
	assert.Equal(t, "unhealthy", body.Checks["db"].Status)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestApp_RecoversFromHandlerPanic(t *testing.T) {
	t.Parallel()

	q, _ := newQueue(t)
	app, err := delayq.New(q, delayq.WithMetricsHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("collector exploded")
	})))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "collector exploded")
}

func TestApp_RunProcessesJobsUntilStopped(t *testing.T) {
	t.Parallel()

	registry := queue.NewRegistry()
	var handled atomic.Int32
	require.NoError(t, registry.RegisterClosure("count", func(context.Context, *queue.Job, json.RawMessage) error {
		handled.Add(1)
		return nil
	}))
	q, _ := newQueue(t, queue.WithResolver(registry))

	ctx := context.Background()
	for range 5 {
		_, err := q.Push(ctx, queue.Closure("count"), nil)
		require.NoError(t, err)
	}

	var started, stopped atomic.Bool
	app, err := delayq.New(q,
		delayq.WithAddress("127.0.0.1:0"),
		delayq.WithWorkers("default", 2, queue.WithSleep(10*time.Millisecond), queue.WithMemoryLimit(0)),
		delayq.WithStartupHook(func(context.Context) error { started.Store(true); return nil }),
		delayq.WithShutdownHook(func(context.Context) error { stopped.Store(true); return nil }),
		delayq.WithShutdownTimeout(time.Second),
	)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run() }()

	require.Eventually(t, func() bool { return handled.Load() == 5 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return app.Addr() != "" }, time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + app.Addr() + "/queues/default")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	app.Stop()
	app.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, started.Load())
	assert.True(t, stopped.Load())

	depth, err := q.Depth(ctx, "default")
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestApp_RunStopsOnContext(t *testing.T) {
	t.Parallel()

	q, _ := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	app, err := delayq.New(q, delayq.WithContext(ctx), delayq.WithAddress(""))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run() }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Empty(t, app.Addr())
}

func TestApp_StartupHookError(t *testing.T) {
	t.Parallel()

	q, _ := newQueue(t)
	hookErr := errors.New("migration failed")
	var shutdownCalled bool
	app, err := delayq.New(q,
		delayq.WithAddress(""),
		delayq.WithStartupHook(func(context.Context) error { return hookErr }),
		delayq.WithShutdownHook(func(context.Context) error { shutdownCalled = true; return nil }),
	)
	require.NoError(t, err)

	assert.ErrorIs(t, app.Run(), hookErr)
	assert.False(t, shutdownCalled)
}

func TestApp_ShutdownHookErrors(t *testing.T) {
	t.Parallel()

	q, _ := newQueue(t)
	errA := errors.New("close redis")
	errB := errors.New("close db")
	app, err := delayq.New(q,
		delayq.WithAddress(""),
		delayq.WithShutdownHook(func(context.Context) error { return errA }),
		delayq.WithShutdownHook(func(context.Context) error { return errB }),
	)
	require.NoError(t, err)

	app.Stop()
	err = app.Run()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}
