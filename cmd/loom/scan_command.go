package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"loom/internal/discovery"
	"loom/internal/logging"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "scan <directory>",
		Short: "Preview which files a run would process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			scanner := discovery.NewScanner(cfg, logging.NewNop())
			result, err := scanner.Scan(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if verbose {
				rows := make([][]string, 0, len(result.Records))
				for _, rec := range result.Records {
					rows = append(rows, []string{
						rec.Name, rec.Type, humanize.IBytes(uint64(rec.Size)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"File", "Type", "Size"}, rows, 2))
			}

			counts := result.CountsByType()
			types := make([]string, 0, len(counts))
			for fileType := range counts {
				types = append(types, fileType)
			}
			sort.Strings(types)
			rows := make([][]string, 0, len(types)+1)
			var totalSize uint64
			for _, rec := range result.Records {
				totalSize += uint64(rec.Size)
			}
			for _, fileType := range types {
				rows = append(rows, countRow(fileType, counts[fileType]))
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Type", "Files"}, rows, 1))
			fmt.Fprintf(out, "%d files (%s) under %s, %d skipped\n",
				len(result.Records), humanize.IBytes(totalSize), result.Root, result.Skipped)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every matching file")
	return cmd
}
