package queue

import "time"

// pushConfig holds options for a single push.
type pushConfig struct {
	scheduledAt *time.Time
	queue       string
	delay       time.Duration
}

// PushOption configures a single push.
type PushOption func(*pushConfig)

// InQueue specifies which queue receives the job.
// If not specified, the "default" queue is used.
//
// Example:
//
//	q.Push(ctx, queue.Named("send_email"), payload, queue.InQueue("email"))
func InQueue(name string) PushOption {
	return func(c *pushConfig) {
		if name != "" {
			c.queue = name
		}
	}
}

// ScheduledAt makes the job ready at t instead of immediately.
// It takes precedence over ScheduledIn.
func ScheduledAt(t time.Time) PushOption {
	return func(c *pushConfig) {
		c.scheduledAt = &t
	}
}

// ScheduledIn makes the job ready after d, measured from the moment of the push.
// Zero or a negative duration means immediately.
//
// Example:
//
//	q.Push(ctx, queue.Named("send_reminder"), payload, queue.ScheduledIn(24*time.Hour))
func ScheduledIn(d time.Duration) PushOption {
	return func(c *pushConfig) {
		c.delay = d
	}
}

// readyAt returns the time the job becomes visible, or the zero time when it
// goes straight to pending.
func (c *pushConfig) readyAt(now time.Time) time.Time {
	if c.scheduledAt != nil {
		if c.scheduledAt.After(now) {
			return *c.scheduledAt
		}
		return time.Time{}
	}
	if c.delay > 0 {
		return now.Add(c.delay)
	}
	return time.Time{}
}
