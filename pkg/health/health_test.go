package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Parallel()

	resp := Run(context.Background(), nil)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Empty(t, resp.Checks)

	resp = Run(context.Background(), Checks{
		"ok":   func(context.Context) error { return nil },
		"down": func(context.Context) error { return errors.New("connection refused") },
	})
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, StatusHealthy, resp.Checks["ok"].Status)
	assert.Equal(t, "connection refused", resp.Checks["down"].Error)
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()

	resp := Run(context.Background(), Checks{
		"slow": func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		},
	}, WithTimeout(20*time.Millisecond))

	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, ErrCheckTimeout.Error(), resp.Checks["slow"].Error)
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	var healthy bool
	handler := ReadinessHandler(Checks{
		"redis": func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("redis down")
		},
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Service Unavailable", rec.Body.String())

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health/ready?format=json", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "redis down", resp.Checks["redis"].Error)

	healthy = true
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
