// Package cmd wires the ragts CLI: the cobra root command and its
// process/record/inspect subcommands. Grounded on the teacher's
// internal/cmd/root.go shape (a single NewRootCmd assembling independently
// constructed subcommands).
package cmd

import (
	"github.com/spf13/cobra"

	"ragts/internal/version"
)

// NewRootCmd creates the root cobra command with all subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ragts",
		Short: "Terminal session recording ingestion pipeline",
		Long:  "ragts parses asciicast v3 recordings, replays them through a VT100 engine, deduplicates scrollback, and detects section boundaries for retrieval-augmented generation over terminal sessions.",
	}

	rootCmd.AddCommand(
		newProcessCmd(),
		newRecordCmd(),
		newInspectCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ragts version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(version.DisplayVersion())
			return nil
		},
	}
}
