package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNotConfirmed = errors.New("cli: refusing to delete jobs without --yes")

func newFlushCommand(load loader) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "flush <queue>",
		Short: "Delete every job of a queue",
		Long:  "Delete the pending, delayed and reserved jobs of a queue. Jobs being worked on are not interrupted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			return withRuntime(cmd, load, func(rt *runtime) error {
				q, err := rt.queue(nil, nil)
				if err != nil {
					return err
				}
				if err := q.Flush(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "flushed %s\n", args[0])
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}
