package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/monorun/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <phase>",
		Short: "Run a phase for the selected projects and their dependencies",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}
			to, _ := cmd.Flags().GetStringSlice("to")
			parallelism, _ := cmd.Flags().GetInt("parallelism")
			noCache, _ := cmd.Flags().GetBool("no-cache")
			watch, _ := cmd.Flags().GetBool("watch")

			return c.app.Run(cmd.Context(), app.RunOptions{
				Phase:       args[0],
				To:          to,
				Parallelism: parallelism,
				NoCache:     noCache,
				Watch:       watch,
			})
		},
	}
	cmd.Flags().StringSliceP("to", "t", nil, "Only run these projects and their dependencies")
	cmd.Flags().IntP("parallelism", "p", 0, "Maximum concurrent operations (0 uses the workspace setting)")
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass the build cache and force execution")
	cmd.Flags().BoolP("watch", "w", false, "Keep running and re-run on file changes")
	return cmd
}
