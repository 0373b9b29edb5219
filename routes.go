package delayq

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/delayq/pkg/health"
	"github.com/dmitrymomot/delayq/pkg/queue"
)

func (a *App) setupRoutes() {
	a.router.Use(recoverer(a.logger))

	if a.healthConfig != nil {
		checks := health.Checks{"queue": queue.Healthcheck(a.queue)}
		for name, fn := range a.healthConfig.checks {
			checks[name] = fn
		}
		a.router.Get(a.healthConfig.livenessPath, health.LivenessHandler())
		a.router.Get(a.healthConfig.readinessPath, health.ReadinessHandler(checks,
			health.WithLogger(a.logger),
			health.WithTimeout(a.healthConfig.timeout),
		))
	}

	if a.metrics != nil {
		a.router.Handle("/metrics", a.metrics)
	}

	a.router.Get("/queues", a.listQueues)
	a.router.Get("/queues/{name}", a.showQueue)
}

type queueStats struct {
	Name string `json:"name"`
	queue.Stats
	Depth int64 `json:"depth"`
}

func (a *App) listQueues(w http.ResponseWriter, r *http.Request) {
	names := a.Queues()
	out := make([]queueStats, 0, len(names))
	for _, name := range names {
		s, err := a.readStats(r, name)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) showQueue(w http.ResponseWriter, r *http.Request) {
	s, err := a.readStats(r, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// readStats coalesces concurrent reads of the same queue into one round trip.
func (a *App) readStats(r *http.Request, name string) (queueStats, error) {
	v, err, _ := a.stats.Do(name, func() (any, error) {
		return a.queue.Stats(r.Context(), name)
	})
	if err != nil {
		return queueStats{}, err
	}
	s := v.(queue.Stats)
	return queueStats{Name: name, Stats: s, Depth: s.Depth()}, nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, queue.ErrConnection) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
