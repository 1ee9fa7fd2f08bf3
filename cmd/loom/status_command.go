package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/checkpoint"
	"loom/internal/config"
	"loom/internal/records"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show checkpointed batches and their progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *checkpoint.Store) error {
				batches, err := store.Batches(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(batches) == 0 {
					fmt.Fprintln(out, "No checkpointed batches.")
					return nil
				}

				rows := make([][]string, 0, len(batches))
				for _, info := range batches {
					stats, err := store.Stats(cmd.Context(), info.ID)
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						shortID(info.ID),
						info.RootPath,
						strconv.Itoa(stats[records.StatusCompleted]),
						strconv.Itoa(stats[records.StatusFailed]),
						strconv.Itoa(stats[records.StatusPending]),
						info.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Batch", "Root", "Completed", "Failed", "Pending", "Updated"},
					rows, 2, 3, 4))
				fmt.Fprintf(out, "Checkpoint: %s\n", store.Path())
				return nil
			})
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <directory>",
		Short: "Mark a batch's failed files for reprocessing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *checkpoint.Store) error {
				expanded, err := config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				root, err := filepath.Abs(expanded)
				if err != nil {
					return err
				}
				batchID, resumed, err := store.ActiveBatch(cmd.Context(), root)
				if err != nil {
					return err
				}
				if !resumed {
					// ActiveBatch created a fresh batch; nothing was checkpointed.
					if dropErr := store.DropBatch(cmd.Context(), batchID); dropErr != nil {
						return dropErr
					}
					return fmt.Errorf("no checkpointed batch for %s", root)
				}
				reset, err := store.RetryFailed(cmd.Context(), batchID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"Marked %d failed files for reprocessing; run `loom run %s` to continue.\n",
					reset, args[0])
				return nil
			})
		},
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
