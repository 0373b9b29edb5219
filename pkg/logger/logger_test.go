package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/delayq/pkg/queue"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	t.Run("json filters by level", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log, err := NewWithWriter(&buf, Config{Level: "warn", Format: "json"})
		require.NoError(t, err)

		log.Info("hidden")
		log.Warn("shown", slog.Int("n", 1))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "shown", entry["msg"])
		assert.InDelta(t, 1, entry["n"], 0)
	})

	t.Run("text", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log, err := NewWithWriter(&buf, Config{Level: "info", Format: "TEXT"})
		require.NoError(t, err)
		log.Info("hello")
		assert.True(t, strings.Contains(buf.String(), "msg=hello"))
	})

	t.Run("invalid format", func(t *testing.T) {
		t.Parallel()
		_, err := NewWithWriter(&bytes.Buffer{}, Config{Level: "info", Format: "xml"})
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("invalid level", func(t *testing.T) {
		t.Parallel()
		_, err := NewWithWriter(&bytes.Buffer{}, Config{Level: "chatty"})
		assert.ErrorIs(t, err, ErrInvalidLevel)
	})
}

func TestJobExtractors(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q, err := queue.New(client)
	require.NoError(t, err)
	ctx := context.Background()
	id, err := q.Push(ctx, queue.Named("x"), nil, queue.InQueue("mail"))
	require.NoError(t, err)
	job, err := q.Pop(ctx, "mail")
	require.NoError(t, err)
	require.NotNil(t, job)

	var buf bytes.Buffer
	extractors := append(JobExtractors(), QueueName(), nil)
	log, err := NewWithWriter(&buf, Config{Level: "info"}, extractors...)
	require.NoError(t, err)

	log.InfoContext(queue.ContextWithJob(ctx, job), "handling")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, id, entry["job_id"])
	assert.Equal(t, "mail", entry["queue"])
	assert.InDelta(t, 1, entry["attempts"], 0)

	buf.Reset()
	log.InfoContext(ctx, "no job")
	entry = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "job_id")
	assert.NotContains(t, entry, "queue")
}

type recordingHandler struct {
	err     error
	level   slog.Level
	records []slog.Record
}

func (h *recordingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return h.err
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandler(t *testing.T) {
	t.Parallel()

	errB := errors.New("b failed")
	a := &recordingHandler{level: slog.LevelDebug}
	b := &recordingHandler{level: slog.LevelError, err: errB}
	log := slog.New(newMultiHandler(a, b))

	log.Info("info")
	assert.Len(t, a.records, 1)
	assert.Empty(t, b.records)

	err := newMultiHandler(a, b).Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelError, "boom", 0))
	assert.ErrorIs(t, err, errB)
	assert.Len(t, a.records, 2)
	assert.Len(t, b.records, 1)

	assert.False(t, newMultiHandler(b).Enabled(context.Background(), slog.LevelWarn))
}

func TestNewNope(t *testing.T) {
	t.Parallel()

	log := NewNope()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
}
