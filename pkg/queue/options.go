package queue

import (
	"io"
	"log/slog"
	"time"
)

const (
	defaultPrefix            = "queues:"
	defaultQueue             = "default"
	defaultVisibilityTimeout = 60 * time.Second
	defaultMigrationRetries  = 10
)

// config holds queue driver configuration.
type config struct {
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

func newConfig() *config {
	return &config{
		prefix:           defaultPrefix,
		visibility:       defaultVisibilityTimeout,
		migrationRetries: defaultMigrationRetries,
		logFailures:      true,
		now:              time.Now,
	}
}

// Option configures the queue driver.
type Option func(*config)

// WithPrefix sets the prefix prepended to every queue key.
// Default: "queues:". An empty prefix stores queue Q under the bare key Q.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithVisibilityTimeout sets how long a popped job stays reserved before it
// is presumed lost and moved back to pending.
// Zero or a negative value disables reservations: popped jobs are not tracked,
// so a job whose handler crashes or whose failure cannot be recorded is lost.
// Timeouts are stored with one second resolution; deadlines round up.
// Default: 60 seconds.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(c *config) {
		c.visibility = d
	}
}

// WithResolver sets the handler resolver used by Job.Execute and Job.Failed.
func WithResolver(r Resolver) Option {
	return func(c *config) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithFailureSink sets the sink receiving failed jobs whose handler has no
// failure callback.
func WithFailureSink(s FailureSink) Option {
	return func(c *config) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithLogFailures toggles forwarding of failed jobs to the failure sink.
// Default: true.
func WithLogFailures(enabled bool) Option {
	return func(c *config) {
		c.logFailures = enabled
	}
}

// WithHooks registers hooks fired before execution and before deletion.
// Nil functions are ignored.
func WithHooks(beforeExecute, beforeDelete HookFunc) Option {
	return func(c *config) {
		if beforeExecute != nil {
			c.beforeExecute = append(c.beforeExecute, beforeExecute)
		}
		if beforeDelete != nil {
			c.beforeDelete = append(c.beforeDelete, beforeDelete)
		}
	}
}

// OnBeforeExecute registers hooks fired right before a handler runs.
func OnBeforeExecute(fns ...HookFunc) Option {
	return func(c *config) {
		for _, fn := range fns {
			if fn != nil {
				c.beforeExecute = append(c.beforeExecute, fn)
			}
		}
	}
}

// OnBeforeDelete registers hooks fired right before a reservation is removed
// by Job.Delete or Job.Release.
func OnBeforeDelete(fns ...HookFunc) Option {
	return func(c *config) {
		for _, fn := range fns {
			if fn != nil {
				c.beforeDelete = append(c.beforeDelete, fn)
			}
		}
	}
}

// WithMigrationRetries sets how many times a migration is retried after an
// optimistic lock conflict. Default: 10.
func WithMigrationRetries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.migrationRetries = n
		}
	}
}

// WithClock overrides the time source used for scores.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger. If nil, logging is disabled.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
