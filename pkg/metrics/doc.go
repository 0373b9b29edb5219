// Package metrics exposes worker and queue metrics to Prometheus.
//
//	reg := metrics.NewRegistry()
//	rec, err := metrics.NewRecorder(reg, "delayq")
//	w := queue.NewWorker(q, queue.WithRecorder(rec))
//	reg.MustRegister(metrics.NewDepthCollector(q, "delayq", "default", "email"))
//	r.Handle("/metrics", metrics.Handler(reg))
package metrics
