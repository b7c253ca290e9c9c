package cmd

import (
	"fmt"
	"os"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"ragts/internal/pipeline"
	"ragts/internal/repository"
	"ragts/internal/repository/memory"
)

func newInspectCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "inspect <recording.cast>",
		Short: "Process a recording in-memory and print a colorized section preview",
		Long: `Inspect runs the same pipeline as "process" but against a throwaway
in-memory repository, then prints each detected section's label, event
range, and a colorized preview of its content — a fold-anchor line range
for CLI-mode sections, or a snapshot rendering for TUI-mode ones.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(configPath)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			store := memory.New()
			if err := store.CreateSession(cmd.Context(), "inspect", 0, 0); err != nil {
				return err
			}

			opts := pipeline.Options{
				ScrollbackLimit: cfg.ScrollbackLimit(),
				Thresholds:      cfg.DetectorThresholds(),
			}
			result, err := pipeline.Run(cmd.Context(), "inspect", f, store, opts)
			if err != nil {
				return err
			}

			printSections(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a ragts config YAML file")
	return cmd
}

func printSections(cmd *cobra.Command, result *pipeline.Result) {
	out := termenv.NewOutput(cmd.OutOrStdout())
	cmd.Printf("%d events (%d malformed skipped), %d sections\n\n", result.EventCount, result.Malformed, len(result.Sections))

	for i, sec := range result.Sections {
		header := out.String(fmt.Sprintf("[%d] %s", i, sec.Label)).Bold()
		if sec.Type == repository.SectionMarker {
			header = header.Foreground(termenv.ANSICyan)
		} else {
			header = header.Foreground(termenv.ANSIYellow)
		}
		cmd.Println(header.String())
		cmd.Printf("    events %d-%s\n", sec.StartEvent, endLabel(sec.EndEvent))

		switch {
		case sec.Snapshot != nil:
			cmd.Printf("    snapshot (%d lines)\n", sec.Snapshot.LineCount())
			for _, line := range sec.Snapshot.Lines {
				cmd.Printf("    | %s\n", line.Text())
			}
		case sec.StartLine != nil && sec.EndLine != nil && result.Snapshot != nil:
			cmd.Printf("    lines %d-%d\n", *sec.StartLine, *sec.EndLine)
			for idx := *sec.StartLine; idx <= *sec.EndLine && idx < result.Snapshot.LineCount(); idx++ {
				cmd.Printf("    | %s\n", result.Snapshot.Lines[idx].Text())
			}
		}
		cmd.Println()
	}
}

func endLabel(end *int) string {
	if end == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *end)
}
