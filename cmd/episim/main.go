package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "episim",
		Short: "Episim - container-based epidemic replay",
		Long: `episim replays a day of movement events over and over and simulates
how an infection spreads between persons who share homes, workplaces,
venues and vehicles.

Every run is stored in a SQLite database and can be inspected with
'episim report' or served to agents with 'episim serve'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newReportCmd(),
		newServeCmd(),
		newValidateCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
