package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/delayq/pkg/failed"
)

func newFailedCommand(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failed",
		Short: "Inspect and retry failed jobs",
	}
	cmd.AddCommand(
		newFailedListCommand(load),
		newFailedRetryCommand(load),
		newFailedClearCommand(load),
	)
	return cmd
}

func newFailedListCommand(load loader) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List failed jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, load, func(rt *runtime) error {
				store, err := rt.store(cmd.Context())
				if err != nil {
					return err
				}
				records, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(records)
				}
				return printRecords(cmd, records)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printRecords(cmd *cobra.Command, records []failed.Record) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUEUE\tJOB\tFAILED AT\tERROR")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Queue, r.JobID, r.FailedAt.Format(time.RFC3339), r.Error)
	}
	return tw.Flush()
}

func newFailedRetryCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Push failed jobs back onto their queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, load, func(rt *runtime) error {
				store, err := rt.store(cmd.Context())
				if err != nil {
					return err
				}
				q, err := rt.queue(nil, nil)
				if err != nil {
					return err
				}

				for _, id := range args {
					jobID, err := failed.Retry(cmd.Context(), store, q, id)
					if err != nil {
						return fmt.Errorf("retry %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", id, jobID)
				}
				return nil
			})
		},
	}
}

func newFailedClearCommand(load loader) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every failed job record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errNotConfirmed
			}
			return withRuntime(cmd, load, func(rt *runtime) error {
				store, err := rt.store(cmd.Context())
				if err != nil {
					return err
				}
				n, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records\n", n)
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}
