package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// NewRootCommand builds the mirage command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "mirage",
		Short: "mirage serves an in-memory mock backend from a scenario file",
		Long: `mirage simulates a REST backend: models with associations stored in memory,
shorthand CRUD routes, custom static routes, pass-through to the real network
and artificial latency, all declared in a YAML or JSON scenario.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newRoutesCmd(),
		newOpenAPICmd(),
		newValidateCmd(),
		newVersionCmd(),
	)
	return root
}

// Main runs the CLI with os.Args and returns the process exit code.
func Main() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// Execute runs the CLI and exits on failure.
func Execute() {
	if code := Main(); code != 0 {
		os.Exit(code)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mirage %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}
