// Package cli implements the delayq command line.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the delayq command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "delayq",
		Short:         "Delayed job queue on Redis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	load := func(cmd *cobra.Command) (*runtime, error) {
		return newRuntime(cmd.Context(), configPath, cmd.ErrOrStderr())
	}

	root.AddCommand(
		newWorkCommand(load),
		newPushCommand(load),
		newStatsCommand(load),
		newFlushCommand(load),
		newFailedCommand(load),
		newMigrateCommand(load),
	)
	return root
}

type loader func(cmd *cobra.Command) (*runtime, error)

// withRuntime runs fn with a connected runtime and releases it afterwards.
func withRuntime(cmd *cobra.Command, load loader, fn func(rt *runtime) error) error {
	rt, err := load(cmd)
	if err != nil {
		return err
	}
	err = fn(rt)
	return errors.Join(err, rt.close(context.WithoutCancel(cmd.Context())))
}
