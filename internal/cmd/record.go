package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ragts/internal/recorder"
)

func newRecordCmd() *cobra.Command {
	var outputPath string
	var execCommand string

	cmd := &cobra.Command{
		Use:   "record [--exec \"cmd arg1 arg2\"] [-- <command> [args...]]",
		Short: "Record a terminal session to an asciicast v3 file",
		Long: `Record runs a command (default: $SHELL) inside a PTY, puts the
controlling terminal into raw mode for the duration, and writes an
asciicast v3 NDJSON stream suitable for "ragts process" to --output
(default stdout).

The command can be given as trailing "-- <command> [args...]" arguments,
or as a single quoted string via --exec, split the way a shell would.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := recorder.Options{}
			switch {
			case execCommand != "":
				opts.Command = execCommand
			case len(args) > 0:
				opts.Argv = args
			default:
				opts.Argv = []string{defaultShell()}
			}

			out := cmd.OutOrStdout()
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outputPath, err)
				}
				defer f.Close()
				out = f
			}
			opts.Output = out

			return recorder.Record(opts)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the recording to this file instead of stdout")
	cmd.Flags().StringVar(&execCommand, "exec", "", `Command to run, split as a shell would (e.g. --exec "bash -l")`)
	return cmd
}

func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}
