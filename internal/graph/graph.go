package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"loom/internal/fileutil"
	"loom/internal/records"
	"loom/internal/relate"
)

// Node is the exported representation of a graph node.
type Node struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	OutputPath string `json:"output_path,omitempty"`
}

// Neighbor pairs a relationship with the node on its other end.
type Neighbor struct {
	Relationship relate.Relationship
	OtherID      string
}

// Document is the serialized graph.
type Document struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Nodes       []Node                `json:"nodes"`
	Edges       []relate.Relationship `json:"edges"`
	EdgesByType map[relate.Type]int   `json:"edges_by_type"`
	Stats       map[string]any        `json:"stats"`
}

// Graph is built single-writer after detection and read-only afterward.
type Graph struct {
	nodes     map[string]Node
	nodeOrder []string
	edges     map[[2]string]relate.Relationship
	edgeOrder [][2]string
	// weights decide which classification survives a confidence tie.
	weights map[string]float64
}

// New creates an empty graph. weights are the fusion weights used to
// break classification ties between duplicate edges.
func New(weights map[string]float64) *Graph {
	return &Graph{
		nodes:   make(map[string]Node),
		edges:   make(map[[2]string]relate.Relationship),
		weights: weights,
	}
}

// AddNode registers a completed record as a graph node. Adding the same
// record twice is a no-op.
func (g *Graph) AddNode(rec records.FileRecord) {
	if _, exists := g.nodes[rec.ID]; exists {
		return
	}
	g.nodes[rec.ID] = Node{
		ID:         rec.ID,
		Path:       rec.Path,
		Name:       rec.Name,
		Type:       rec.Type,
		OutputPath: rec.OutputPath,
	}
	g.nodeOrder = append(g.nodeOrder, rec.ID)
}

// AddEdge inserts a relationship. Self-edges and edges touching unknown
// nodes are rejected. A duplicate ordered pair keeps the
// higher-confidence classification and folds the loser into the
// retained edge's evidence; on a confidence tie the classification
// whose dominant strategy carries the higher fusion weight wins.
func (g *Graph) AddEdge(rel relate.Relationship) error {
	if rel.SourceID == rel.TargetID {
		return fmt.Errorf("self edge on %s", rel.SourceID)
	}
	if _, ok := g.nodes[rel.SourceID]; !ok {
		return fmt.Errorf("unknown source node %s", rel.SourceID)
	}
	if _, ok := g.nodes[rel.TargetID]; !ok {
		return fmt.Errorf("unknown target node %s", rel.TargetID)
	}

	key := [2]string{rel.SourceID, rel.TargetID}
	existing, dup := g.edges[key]
	if !dup {
		g.edges[key] = rel
		g.edgeOrder = append(g.edgeOrder, key)
		return nil
	}

	keep, fold := existing, rel
	if rel.Confidence > existing.Confidence ||
		(rel.Confidence == existing.Confidence &&
			g.dominantWeight(rel) > g.dominantWeight(existing)) {
		keep, fold = rel, existing
	}
	if fold.Type != keep.Type {
		keep.Evidence = append(keep.Evidence, relate.Evidence{
			Strategy: "alternative",
			Score:    fold.Confidence,
			Detail:   fmt.Sprintf("discarded %s classification at %.2f confidence", fold.Type, fold.Confidence),
		})
	}
	g.edges[key] = keep
	return nil
}

func (g *Graph) dominantWeight(rel relate.Relationship) float64 {
	best := 0.0
	bestContribution := -1.0
	for _, ev := range rel.Evidence {
		weight := g.weights[ev.Strategy]
		if contribution := weight * ev.Score; contribution > bestContribution {
			bestContribution = contribution
			best = weight
		}
	}
	return best
}

// Neighbors returns every relationship touching fileID together with the
// node on the other end, strongest confidence first, ties ordered by
// that node's ID.
func (g *Graph) Neighbors(fileID string) []Neighbor {
	var neighbors []Neighbor
	for _, key := range g.edgeOrder {
		rel := g.edges[key]
		switch fileID {
		case rel.SourceID:
			neighbors = append(neighbors, Neighbor{Relationship: rel, OtherID: rel.TargetID})
		case rel.TargetID:
			neighbors = append(neighbors, Neighbor{Relationship: rel, OtherID: rel.SourceID})
		}
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Relationship.Confidence != neighbors[j].Relationship.Confidence {
			return neighbors[i].Relationship.Confidence > neighbors[j].Relationship.Confidence
		}
		return neighbors[i].OtherID < neighbors[j].OtherID
	})
	return neighbors
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Export produces the serializable document, with nodes and edges in a
// stable sorted order.
func (g *Graph) Export() Document {
	nodes := make([]Node, 0, len(g.nodes))
	for _, id := range g.nodeOrder {
		nodes = append(nodes, g.nodes[id])
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := make([]relate.Relationship, 0, len(g.edges))
	for _, key := range g.edgeOrder {
		edges = append(edges, g.edges[key])
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].SourceID != edges[j].SourceID {
			return edges[i].SourceID < edges[j].SourceID
		}
		return edges[i].TargetID < edges[j].TargetID
	})

	byType := make(map[relate.Type]int)
	totalConfidence := 0.0
	for _, edge := range edges {
		byType[edge.Type]++
		totalConfidence += edge.Confidence
	}
	avgConfidence := 0.0
	if len(edges) > 0 {
		avgConfidence = totalConfidence / float64(len(edges))
	}

	return Document{
		GeneratedAt: time.Now().UTC(),
		Nodes:       nodes,
		Edges:       edges,
		EdgesByType: byType,
		Stats: map[string]any{
			"node_count":         len(nodes),
			"edge_count":         len(edges),
			"average_confidence": avgConfidence,
		},
	}
}

// Write exports the graph as indented JSON at path, atomically.
func (g *Graph) Write(path string) error {
	data, err := json.MarshalIndent(g.Export(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	return nil
}
