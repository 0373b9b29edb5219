package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/delayq/pkg/queue"
)

type queueStats struct {
	Name string `json:"name"`
	queue.Stats
	Depth int64 `json:"depth"`
}

func newStatsCommand(load loader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats [queue...]",
		Short: "Show pending, delayed and reserved counts",
		Long:  "Show the size of each region of the given queues, or of every configured worker queue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, load, func(rt *runtime) error {
				q, err := rt.queue(nil, nil)
				if err != nil {
					return err
				}

				names := args
				if len(names) == 0 {
					for _, w := range rt.cfg.WorkerGroups() {
						names = append(names, w.Queue)
					}
				}

				out := make([]queueStats, 0, len(names))
				for _, name := range names {
					s, err := q.Stats(cmd.Context(), name)
					if err != nil {
						return err
					}
					out = append(out, queueStats{Name: name, Stats: s, Depth: s.Depth()})
				}

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(out)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "QUEUE\tPENDING\tDELAYED\tRESERVED\tDEPTH")
				for _, s := range out {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", s.Name, s.Pending, s.Delayed, s.Reserved, s.Depth)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
