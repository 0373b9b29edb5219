// Package health serves the liveness and readiness endpoints of a worker
// process.
//
//	checks := health.Checks{
//	    "redis": redis.Healthcheck(client),
//	    "queue": queue.Healthcheck(q),
//	}
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(checks, health.WithTimeout(2*time.Second)))
//
// Checks run in parallel under one timeout. The readiness endpoint answers
// 503 when any of them fails.
package health
