package failed

import (
	"context"
	"errors"

	"github.com/dmitrymomot/delayq/pkg/queue"
)

type multiSink []queue.FailureSink

// Multi fans a failure out to every sink. All sinks are called even if one
// fails; the errors are joined.
func Multi(sinks ...queue.FailureSink) queue.FailureSink {
	clean := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			clean = append(clean, s)
		}
	}
	return clean
}

func (m multiSink) Log(ctx context.Context, queue string, payload []byte, cause error) error {
	var errs []error
	for _, s := range m {
		if err := s.Log(ctx, queue, payload, cause); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
