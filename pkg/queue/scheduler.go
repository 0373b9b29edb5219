package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultPushTimeout = 10 * time.Second

// Scheduler pushes jobs on cron schedules.
// Expressions have five fields: minute, hour, day of month, month, day of week.
type Scheduler struct {
	queue   *Queue
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
}

// SchedulerOption configures a scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the scheduler logger. If nil, logging is disabled.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPushTimeout bounds each scheduled push. Default: 10 seconds.
func WithPushTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLocation sets the time zone schedules are evaluated in. Default: local.
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) {
		if loc != nil {
			s.cron = newCron(loc)
		}
	}
}

// NewScheduler creates a scheduler that pushes into q.
func NewScheduler(q *Queue, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		queue:   q,
		cron:    newCron(time.Local),
		logger:  discardLogger(),
		timeout: defaultPushTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newCron(loc *time.Location) *cron.Cron {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return cron.New(cron.WithParser(parser), cron.WithLocation(loc))
}

// Add registers a job pushed on every tick of spec.
//
// Example:
//
//	s.Add("0 * * * *", queue.Named("cleanup_sessions"), nil, queue.InQueue("maintenance"))
func (s *Scheduler) Add(spec string, d Descriptor, data any, opts ...PushOption) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, err := marshalData(data); err != nil {
		return err
	}

	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		id, err := s.queue.Push(ctx, d, data, opts...)
		if err != nil {
			s.logger.ErrorContext(ctx, "scheduled push failed",
				slog.String("schedule", spec),
				slog.String("handler", d.String()),
				slog.Any("error", err),
			)
			return
		}
		s.logger.DebugContext(ctx, "scheduled job pushed",
			slog.String("schedule", spec),
			slog.String("job_id", id),
		)
	})
	if err != nil {
		return errors.Join(ErrInvalidSchedule, err)
	}
	return nil
}

// Len returns the number of registered schedules.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start begins firing schedules in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("schedules", s.Len()))
}

// Stop stops firing schedules and waits for running pushes to finish or for
// ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
