package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/monorun/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the local build cache and recorded build info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cacheOnly, _ := cmd.Flags().GetBool("cache")
			stateOnly, _ := cmd.Flags().GetBool("state")

			opts := app.CleanOptions{Cache: true, State: true}
			switch {
			case cacheOnly && !stateOnly:
				opts.State = false
			case stateOnly && !cacheOnly:
				opts.Cache = false
			}

			return c.app.Clean(cmd.Context(), opts)
		},
	}

	cmd.Flags().Bool("cache", false, "Only remove the local build cache")
	cmd.Flags().Bool("state", false, "Only remove the recorded build info")

	return cmd
}
