package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/batch"
	"loom/internal/checkpoint"
	"loom/internal/config"
	"loom/internal/extract"
	"loom/internal/logging"
	"loom/internal/relate"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var workers int
	var noResume bool
	var retryFailed bool
	var noCheckpoint bool
	var patterns []string
	var recursive bool
	var threshold float64
	var outputDir string
	var fileTimeout int

	cmd := &cobra.Command{
		Use:   "run <directory>",
		Short: "Process a directory and build its relationship graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if workers > 0 {
				cfg.Batch.Workers = workers
			}
			if noResume {
				cfg.Batch.Resume = false
			}
			if retryFailed {
				cfg.Batch.RetryFailed = true
			}
			if len(patterns) > 0 {
				cfg.Batch.IncludePatterns = patterns
			}
			if cmd.Flags().Changed("recursive") {
				cfg.Batch.Recursive = recursive
			}
			if cmd.Flags().Changed("threshold") {
				cfg.Relationships.Threshold = threshold
			}
			if cmd.Flags().Changed("file-timeout") {
				cfg.Batch.FileTimeout = fileTimeout
			}
			if outputDir != "" {
				expanded, err := config.ExpandPath(outputDir)
				if err != nil {
					return fmt.Errorf("resolve output directory: %w", err)
				}
				cfg.Paths.OutputDir = expanded
				if err := cfg.EnsureDirectories(); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var store *checkpoint.Store
			if !noCheckpoint {
				store, err = checkpoint.Open(cfg)
				if err != nil {
					return err
				}
				defer store.Close()
				if store.Recovered {
					fmt.Fprintln(cmd.OutOrStdout(),
						"Previous checkpoint was unreadable and has been set aside; starting fresh.")
				}
			}

			extractor := extract.New(cfg, logger)
			orch := batch.New(cfg, store, extractor.Process, logger)

			out := cmd.OutOrStdout()
			orch.OnProgress(func(p batch.Progress) {
				fmt.Fprintf(out, "\r[%d/%d] completed=%d failed=%d",
					p.Done(), p.Total, p.Completed, p.Failed)
			})

			summary, err := orch.Run(runCtx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			printSummary(out, summary)
			if summary.Interrupted {
				fmt.Fprintln(out, "Run interrupted; rerun the same command to resume.")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Override the worker pool size")
	cmd.Flags().BoolVar(&noResume, "no-resume", false, "Ignore checkpoint state and reprocess everything")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Reprocess files the previous run failed on")
	cmd.Flags().BoolVar(&noCheckpoint, "no-checkpoint", false, "Disable checkpointing entirely")
	cmd.Flags().StringArrayVar(&patterns, "pattern", nil, "Glob pattern to include, repeatable (overrides config)")
	cmd.Flags().BoolVar(&recursive, "recursive", true, "Descend into subdirectories")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum relationship confidence to keep")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for the graph and per-file artifacts")
	cmd.Flags().IntVar(&fileTimeout, "file-timeout", 0, "Per-file timeout in seconds, 0 disables it")
	return cmd
}

func printSummary(out io.Writer, summary *batch.Summary) {
	rows := [][]string{
		{"Batch", summary.BatchID},
		countRow("Files", summary.Total),
		countRow("Completed", summary.Completed),
		countRow("Failed", summary.Failed),
		countRow("Prior failures", summary.PriorFailures),
		countRow("Resumed", summary.SkippedResumed),
		countRow("Relationships", summary.Relationships),
		{"Duration", summary.Duration.Round(time.Millisecond).String()},
		{"Checkpoint degraded", yesNo(summary.Degraded)},
	}
	for _, relType := range relate.AllTypes() {
		if count := summary.RelationshipsByType[relType]; count > 0 {
			rows = append(rows, countRow("  "+string(relType), count))
		}
	}
	if summary.GraphPath != "" {
		rows = append(rows, []string{"Graph", summary.GraphPath})
	}
	fmt.Fprintln(out, renderPairs(rows))
}
