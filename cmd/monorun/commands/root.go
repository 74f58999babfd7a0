// Package commands implements the CLI commands for monorun.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/monorun/internal/app"
	"go.trai.ch/monorun/internal/build"
)

// CLI represents the command line interface for monorun.
type CLI struct {
	app     Application
	logs    LogSettings
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Run(ctx context.Context, opts app.RunOptions) error
	Clean(ctx context.Context, opts app.CleanOptions) error
}

// LogSettings is the part of the logger the global flags control.
type LogSettings interface {
	SetJSON(enable bool)
	SetVerbose(enable bool)
}

// Option configures a CLI.
type Option func(*CLI)

// WithLogSettings lets --json-log and --verbose reconfigure the logger.
func WithLogSettings(logs LogSettings) Option {
	return func(c *CLI) {
		c.logs = logs
	}
}

// New creates a new CLI instance with the given app.
func New(a Application, opts ...Option) *CLI {
	rootCmd := &cobra.Command{
		Use:           "monorun",
		Short:         "Run script phases across a monorepo with caching",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().Bool("json-log", false, "Emit logs as JSON lines")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show debug logs")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}
	for _, opt := range opts {
		opt(c)
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if c.logs == nil {
			return
		}
		jsonLog, _ := cmd.Flags().GetBool("json-log")
		verbose, _ := cmd.Flags().GetBool("verbose")
		c.logs.SetJSON(jsonLog)
		c.logs.SetVerbose(verbose)
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
