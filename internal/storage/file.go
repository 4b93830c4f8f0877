package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/IshaanNene/wikigraph/internal/graph"
	"github.com/IshaanNene/wikigraph/internal/types"
)

// GraphFileSuffix is appended to the graph name to form its file name.
const GraphFileSuffix = ".graph.json"

// FileStore writes each graph to its own JSON file in a directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates a file-based graph store rooted at dir.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "file", Op: "init", Err: err}
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With("component", "file_store"),
	}, nil
}

func (s *FileStore) Name() string { return "file" }

// Path returns the file a graph name is stored in.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name+GraphFileSuffix)
}

// Save writes the graph atomically: a temp file is written then renamed.
func (s *FileStore) Save(ctx context.Context, g *graph.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := g.Meta.Name
	if name == "" {
		return &types.StorageError{Backend: "file", Op: "save", Err: errors.New("graph has no name")}
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return &types.StorageError{Backend: "file", Op: "save", Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ToDocument(g)); err != nil {
		tmp.Close()
		return &types.StorageError{Backend: "file", Op: "save", Err: fmt.Errorf("encode graph: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &types.StorageError{Backend: "file", Op: "save", Err: err}
	}

	finalPath := s.Path(name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return &types.StorageError{Backend: "file", Op: "save", Err: err}
	}

	s.logger.Info("graph saved", "path", finalPath, "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return nil
}

// Load reads the graph stored under name.
func (s *FileStore) Load(ctx context.Context, name string) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(s.Path(name))
}

// Close is a no-op for file storage.
func (s *FileStore) Close() error { return nil }

// LoadFile reads a graph document from an explicit path.
func LoadFile(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", types.ErrNotFound, path)
		}
		return nil, &types.StorageError{Backend: "file", Op: "load", Err: err}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &types.StorageError{Backend: "file", Op: "load", Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	if doc.Meta.Name == "" {
		doc.Meta.Name = strings.TrimSuffix(filepath.Base(path), GraphFileSuffix)
	}
	g, err := FromDocument(doc)
	if err != nil {
		return nil, &types.StorageError{Backend: "file", Op: "load", Err: err}
	}
	return g, nil
}
