package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ragts/internal/activitylog"
	"ragts/internal/config"
	"ragts/internal/pipeline"
	"ragts/internal/repository"
	"ragts/internal/repository/sqlite"
)

func newProcessCmd() *cobra.Command {
	var databasePath string
	var configPath string
	var sessionID string
	var batch bool
	var batchConcurrency int
	var activityLogPath string

	cmd := &cobra.Command{
		Use:   "process <recording.cast> [more.cast...] [--db path] [--batch]",
		Short: "Parse, replay, and section one or more asciicast recordings",
		Long: `Process ingests asciicast v3 recordings: parses the NDJSON stream,
replays it through a VT100 engine, deduplicates scrollback, detects section
boundaries, and commits the result to the repository.

Without --batch, recordings are processed one at a time in argument order.
With --batch, they fan out across up to --concurrency goroutines via
golang.org/x/sync/errgroup, sharing one repository connection; the
repository serializes its own writes (a single *sql.DB connection plus an
advisory file lock), so concurrent commits are always safe.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID != "" && len(args) > 1 {
				return fmt.Errorf("--id can only be used with a single recording")
			}

			cfg, err := resolveConfig(configPath)
			if err != nil {
				return err
			}
			if databasePath != "" {
				cfg.Database = databasePath
			}

			store, err := sqlite.Open(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("open repository: %w", err)
			}
			defer store.Close()

			log := activitylog.Nop()
			if activityLogPath != "" {
				log = activitylog.New(true, activityLogPath, "ragts-process", uuid.New().String())
				defer log.Close()
			}

			opts := pipeline.Options{
				ScrollbackLimit: cfg.ScrollbackLimit(),
				Thresholds:      cfg.DetectorThresholds(),
				Logger:          log,
			}

			ctx := cmd.Context()
			if len(args) == 1 {
				id := sessionID
				if id == "" {
					id = uuid.New().String()
				}
				result, err := processOne(ctx, store, id, args[0], opts)
				if err != nil {
					return err
				}
				printResult(cmd, id, result)
				return nil
			}

			if batch {
				return processBatch(ctx, store, args, opts, batchConcurrency, cmd)
			}
			for _, path := range args {
				result, err := processOne(ctx, store, uuid.New().String(), path, opts)
				if err != nil {
					return err
				}
				printResult(cmd, path, result)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&databasePath, "db", "", "Path to the sqlite database (default ~/.ragts/ragts.db)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a ragts config YAML file")
	cmd.Flags().StringVar(&sessionID, "id", "", "Session ID to assign (single-file only; default a generated UUID)")
	cmd.Flags().BoolVar(&batch, "batch", false, "Fan multiple recordings out across concurrent workers")
	cmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "Max concurrent recordings in --batch mode")
	cmd.Flags().StringVar(&activityLogPath, "activity-log", "", "Append run telemetry as JSONL to this path")

	return cmd
}

func processOne(ctx context.Context, store repository.Store, sessionID, path string, opts pipeline.Options) (*pipeline.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := store.CreateSession(ctx, sessionID, 0, 0); err != nil {
		return nil, fmt.Errorf("create session for %s: %w", path, err)
	}

	result, err := pipeline.Run(ctx, sessionID, f, store, opts)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", path, err)
	}
	return result, nil
}

func processBatch(ctx context.Context, store repository.Store, paths []string, opts pipeline.Options, concurrency int, cmd *cobra.Command) error {
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for _, path := range paths {
		path := path
		id := uuid.New().String()
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := processOne(gctx, store, id, path, opts)
			if err != nil {
				return err
			}
			printResult(cmd, path, result)
			return nil
		})
	}

	return g.Wait()
}

func printResult(cmd *cobra.Command, sessionID string, result *pipeline.Result) {
	cmd.Printf("%s: %d events (%d malformed skipped), %d sections\n",
		sessionID, result.EventCount, result.Malformed, len(result.Sections))
}

func resolveConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}
