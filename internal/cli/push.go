package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/delayq/pkg/queue"
)

var errConflictingSchedule = errors.New("cli: use either --at or --delay")

func newPushCommand(load loader) *cobra.Command {
	var (
		kind      string
		queueName string
		data      string
		delay     time.Duration
		at        string
	)

	cmd := &cobra.Command{
		Use:   "push <handler>",
		Short: "Push a job",
		Long: `Push a job onto a queue and print its id.

The handler is a name for named and closure handlers, and "target.method"
for func and method handlers.`,
		Example: `  delayq push webhook --data '{"url":"https://example.com/hook"}'
  delayq push log --queue reports --delay 1h --data '{"message":"hello"}'
  delayq push reports.Daily --kind func --at 2026-01-01T00:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDescriptor(kind, args[0])
			if err != nil {
				return err
			}

			var payload any
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("%w: --data is not valid JSON", queue.ErrSerialization)
				}
				payload = json.RawMessage(data)
			}

			opts := []queue.PushOption{queue.InQueue(queueName)}
			switch {
			case at != "" && delay > 0:
				return errConflictingSchedule
			case at != "":
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				opts = append(opts, queue.ScheduledAt(t))
			case delay > 0:
				opts = append(opts, queue.ScheduledIn(delay))
			}

			return withRuntime(cmd, load, func(rt *runtime) error {
				q, err := rt.queue(nil, nil)
				if err != nil {
					return err
				}
				id, err := q.Push(cmd.Context(), d, payload, opts...)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(queue.KindNamed), "handler kind: named, closure, func or method")
	cmd.Flags().StringVarP(&queueName, "queue", "q", "default", "queue name")
	cmd.Flags().StringVarP(&data, "data", "d", "", "job data as JSON")
	cmd.Flags().DurationVar(&delay, "delay", 0, "run the job after this delay")
	cmd.Flags().StringVar(&at, "at", "", "run the job at this RFC 3339 time")
	return cmd
}

func parseDescriptor(kind, target string) (queue.Descriptor, error) {
	var d queue.Descriptor
	switch queue.Kind(kind) {
	case queue.KindNamed:
		d = queue.Named(target)
	case queue.KindClosure:
		d = queue.Closure(target)
	case queue.KindFunc, queue.KindMethod:
		typ, name, ok := strings.Cut(target, ".")
		if !ok {
			return queue.Descriptor{}, fmt.Errorf("%w: %s handlers are written as target.method", queue.ErrInvalidDescriptor, kind)
		}
		if queue.Kind(kind) == queue.KindFunc {
			d = queue.Func(typ, name)
		} else {
			d = queue.Method(typ, name)
		}
	default:
		return queue.Descriptor{}, fmt.Errorf("%w: unknown kind %q", queue.ErrInvalidDescriptor, kind)
	}
	return d, d.Validate()
}
