package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/delayq/pkg/queue"
)

const defaultNamespace = "delayq"

// ErrRegister is returned when an instrument cannot be registered.
var ErrRegister = errors.New("metrics: failed to register collector")

// Recorder implements queue.Recorder with Prometheus instruments.
type Recorder struct {
	jobs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	pollErrors *prometheus.CounterVec
}

// NewRecorder creates the worker instruments and registers them with reg.
func NewRecorder(reg prometheus.Registerer, namespace string) (*Recorder, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}

	r := &Recorder{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Jobs processed by workers, by final state.",
		}, []string{"queue", "state"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent processing a job, by final state.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 9),
		}, []string{"queue", "state"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Failed attempts to pop a job.",
		}, []string{"queue"}),
	}

	for _, c := range []prometheus.Collector{r.jobs, r.duration, r.pollErrors} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Join(ErrRegister, err)
		}
	}
	return r, nil
}

// ObserveJob implements queue.Recorder.
func (r *Recorder) ObserveJob(name string, state queue.State, elapsed time.Duration) {
	r.jobs.WithLabelValues(name, state.String()).Inc()
	r.duration.WithLabelValues(name, state.String()).Observe(elapsed.Seconds())
}

// ObservePollError implements queue.Recorder.
func (r *Recorder) ObservePollError(name string) {
	r.pollErrors.WithLabelValues(name).Inc()
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
