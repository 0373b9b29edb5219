package cli

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/delayq/pkg/failed"
)

func newMigrateCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the failed_jobs table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, load, func(rt *runtime) error {
				pool, err := rt.database(cmd.Context())
				if err != nil {
					return err
				}
				return failed.Migrate(cmd.Context(), pool, rt.log)
			})
		},
	}
}
