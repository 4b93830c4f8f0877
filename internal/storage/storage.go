package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IshaanNene/wikigraph/internal/config"
	"github.com/IshaanNene/wikigraph/internal/graph"
)

// GraphStore is the interface for all graph storage backends. Node set,
// edge set, node attributes and graph metadata survive a round trip.
type GraphStore interface {
	// Save persists g under g.Meta.Name, replacing any previous version.
	Save(ctx context.Context, g *graph.Graph) error

	// Load reads the graph stored under name. Missing graphs yield an
	// error matching types.ErrNotFound.
	Load(ctx context.Context, name string) (*graph.Graph, error)

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// Document is the serialised form of a graph.
type Document struct {
	Meta  graph.Meta   `json:"meta"`
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// ToDocument snapshots g.
func ToDocument(g *graph.Graph) Document {
	return Document{Meta: g.Meta, Nodes: g.Nodes(), Edges: g.Edges()}
}

// FromDocument rebuilds a graph from its serialised form.
func FromDocument(d Document) (*graph.Graph, error) {
	g := graph.New()
	g.Meta = d.Meta
	for _, n := range d.Nodes {
		g.AddNode(n)
	}
	for _, e := range d.Edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return nil, fmt.Errorf("graph %q: %w", d.Meta.Name, err)
		}
	}
	return g, nil
}

// New creates the backend(s) named by cfg.Type. A comma-separated list fans
// out to several backends; the first one listed serves loads.
func New(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (GraphStore, error) {
	var backends []GraphStore
	for _, typ := range strings.Split(cfg.Type, ",") {
		s, err := newBackend(ctx, strings.TrimSpace(typ), cfg, logger)
		if err != nil {
			for _, b := range backends {
				b.Close()
			}
			return nil, err
		}
		backends = append(backends, s)
	}
	if len(backends) == 1 {
		return backends[0], nil
	}
	return NewMultiStore(backends, logger), nil
}

func newBackend(ctx context.Context, typ string, cfg *config.StorageConfig, logger *slog.Logger) (GraphStore, error) {
	switch typ {
	case "file":
		return NewFileStore(cfg.OutputPath, logger)
	case "mongodb":
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	case "postgres":
		return NewPostgresStore(ctx, cfg.PostgresDSN, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %q (valid: file, mongodb, postgres)", typ)
	}
}
