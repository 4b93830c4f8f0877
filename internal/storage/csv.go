package storage

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/IshaanNene/wikigraph/internal/graph"
	"github.com/IshaanNene/wikigraph/internal/types"
)

// CSVExporter writes a graph as a node table and an edge list for external
// plotting tools.
type CSVExporter struct {
	dir    string
	logger *slog.Logger
}

// NewCSVExporter creates an exporter writing into dir.
func NewCSVExporter(dir string, logger *slog.Logger) (*CSVExporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "csv", Op: "init", Err: err}
	}
	return &CSVExporter{
		dir:    dir,
		logger: logger.With("component", "csv_exporter"),
	}, nil
}

// Export writes <name>_nodes.csv and <name>_edges.csv and returns their paths.
func (e *CSVExporter) Export(g *graph.Graph) (nodesPath, edgesPath string, err error) {
	name := g.Meta.Name
	nodesPath = filepath.Join(e.dir, name+"_nodes.csv")
	edgesPath = filepath.Join(e.dir, name+"_edges.csv")

	nodeRows := [][]string{{"title", "hop", "link_count", "in_degree", "out_degree", "delta", "no_views"}}
	for _, n := range g.Nodes() {
		delta := ""
		if n.Delta != nil {
			delta = strconv.FormatFloat(*n.Delta, 'g', -1, 64)
		}
		nodeRows = append(nodeRows, []string{
			n.Title,
			strconv.Itoa(n.Hop),
			strconv.Itoa(n.LinkCount),
			strconv.Itoa(g.InDegree(n.Title)),
			strconv.Itoa(g.OutDegree(n.Title)),
			delta,
			strconv.FormatBool(n.NoViews),
		})
	}
	if err := writeCSV(nodesPath, nodeRows); err != nil {
		return "", "", err
	}

	edgeRows := [][]string{{"source", "target"}}
	for _, edge := range g.Edges() {
		edgeRows = append(edgeRows, []string{edge.From, edge.To})
	}
	if err := writeCSV(edgesPath, edgeRows); err != nil {
		return "", "", err
	}

	e.logger.Info("graph exported", "nodes", nodesPath, "edges", edgesPath)
	return nodesPath, edgesPath, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return &types.StorageError{Backend: "csv", Op: "export", Err: err}
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return &types.StorageError{Backend: "csv", Op: "export", Err: fmt.Errorf("write %s: %w", path, err)}
	}
	if err := f.Close(); err != nil {
		return &types.StorageError{Backend: "csv", Op: "export", Err: err}
	}
	return nil
}
