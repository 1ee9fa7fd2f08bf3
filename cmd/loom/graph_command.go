package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/checkpoint"
	"loom/internal/config"
	"loom/internal/graph"
	"loom/internal/logging"
	"loom/internal/records"
	"loom/internal/relate"
)

func newGraphCommand(ctx *commandContext) *cobra.Command {
	var fileQuery string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "graph [directory]",
		Short: "Inspect the relationship graph, or rebuild it from the checkpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return rebuildGraph(cmd, ctx, args[0])
			}
			graphPath := filepath.Join(cfg.Paths.OutputDir, "graph.json")
			data, err := os.ReadFile(graphPath)
			if err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("no graph at %s; run `loom run` first", graphPath)
				}
				return err
			}
			var doc graph.Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("decode graph %s: %w", graphPath, err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				_, err := out.Write(data)
				return err
			}
			if fileQuery != "" {
				return printFileEdges(out, &doc, fileQuery)
			}

			rows := make([][]string, 0, len(relate.AllTypes()))
			for _, relType := range relate.AllTypes() {
				if count := doc.EdgesByType[relType]; count > 0 {
					rows = append(rows, countRow(string(relType), count))
				}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Relationship", "Edges"}, rows, 1))
			fmt.Fprintf(out, "%d nodes, %d edges (%s)\n",
				len(doc.Nodes), len(doc.Edges), graphPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&fileQuery, "file", "f", "", "Show relationships touching a file name")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the raw graph document")
	return cmd
}

// rebuildGraph reruns relationship detection over the checkpointed
// metadata for root's batch and rewrites the graph export. Files are
// not reprocessed.
func rebuildGraph(cmd *cobra.Command, ctx *commandContext, root string) error {
	return ctx.withStore(func(cfg *config.Config, store *checkpoint.Store) error {
		expanded, err := config.ExpandPath(root)
		if err != nil {
			return err
		}
		absRoot, err := filepath.Abs(expanded)
		if err != nil {
			return err
		}
		batchID, resumed, err := store.ActiveBatch(cmd.Context(), absRoot)
		if err != nil {
			return err
		}
		if !resumed {
			if dropErr := store.DropBatch(cmd.Context(), batchID); dropErr != nil {
				return dropErr
			}
			return fmt.Errorf("no checkpointed batch for %s; run `loom run %s` first", absRoot, root)
		}
		entries, err := store.Load(cmd.Context(), batchID)
		if err != nil {
			return err
		}

		var completed []records.FileRecord
		for _, entry := range entries {
			if entry.Status != records.StatusCompleted {
				continue
			}
			completed = append(completed, records.FileRecord{
				ID:         entry.ID,
				Path:       entry.Path,
				Name:       filepath.Base(entry.Path),
				Type:       entry.Type,
				Status:     entry.Status,
				Metadata:   entry.Metadata,
				OutputPath: entry.OutputPath,
			})
		}
		if len(completed) == 0 {
			return fmt.Errorf("batch for %s has no completed files", absRoot)
		}

		detector := relate.NewDetector(cfg, logging.NewNop())
		result, err := detector.Detect(cmd.Context(), completed)
		if err != nil {
			return err
		}

		g := graph.New(detector.Weights())
		for _, rec := range completed {
			g.AddNode(rec)
		}
		for _, rel := range result.Relationships {
			if err := g.AddEdge(rel); err != nil {
				return err
			}
		}
		graphPath := filepath.Join(cfg.Paths.OutputDir, "graph.json")
		if err := g.Write(graphPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt graph from %d files: %d relationships (%s)\n",
			len(completed), len(result.Relationships), graphPath)
		return nil
	})
}

// printFileEdges lists every edge touching nodes whose name or path
// contains the query.
func printFileEdges(out io.Writer, doc *graph.Document, query string) error {
	nameByID := make(map[string]string, len(doc.Nodes))
	matched := make(map[string]struct{})
	for _, node := range doc.Nodes {
		nameByID[node.ID] = node.Name
		if containsFold(node.Name, query) || containsFold(node.Path, query) {
			matched[node.ID] = struct{}{}
		}
	}
	if len(matched) == 0 {
		return fmt.Errorf("no graph node matches %q", query)
	}

	var rows [][]string
	for _, edge := range doc.Edges {
		_, srcHit := matched[edge.SourceID]
		_, dstHit := matched[edge.TargetID]
		if !srcHit && !dstHit {
			continue
		}
		rows = append(rows, []string{
			nameByID[edge.SourceID],
			string(edge.Type),
			nameByID[edge.TargetID],
			fmt.Sprintf("%.2f", edge.Confidence),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })

	if len(rows) == 0 {
		fmt.Fprintf(out, "No relationships touch %q.\n", query)
		return nil
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Source", "Type", "Target", "Confidence"}, rows, 3))
	return nil
}

func containsFold(value, query string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(query))
}
