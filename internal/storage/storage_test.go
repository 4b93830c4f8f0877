package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/IshaanNene/wikigraph/internal/config"
	"github.com/IshaanNene/wikigraph/internal/graph"
	"github.com/IshaanNene/wikigraph/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleGraph(name string) *graph.Graph {
	g := graph.New()
	g.Meta = graph.Meta{
		Name:       name,
		Seed:       "Stan Lee",
		AsOf:       time.Date(2018, 11, 12, 0, 0, 0, 0, time.UTC),
		ViewsStart: time.Date(2018, 11, 11, 0, 0, 0, 0, time.UTC),
		ViewsEnd:   time.Date(2018, 11, 12, 0, 0, 0, 0, time.UTC),
		RunID:      "0b0f7a1e-1c5b-4a8e-9a77-2f3f1b9f6a10",
		CreatedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	g.AddNode(graph.Node{Title: "Stan Lee", Hop: 0, LinkCount: 3})
	g.AddNode(graph.Node{Title: "Marvel Comics", Hop: 1, LinkCount: 2})
	g.AddNode(graph.Node{Title: "Spider-Man", Hop: 1, LinkCount: 1})
	g.AddEdge("Stan Lee", "Marvel Comics")
	g.AddEdge("Stan Lee", "Spider-Man")
	g.AddEdge("Spider-Man", "Marvel Comics")
	g.SetDelta("Stan Lee", 400, false)
	g.SetDelta("Spider-Man", 1, true)
	return g
}

// assertSameGraph checks node set, edge set, attributes and metadata.
func assertSameGraph(t *testing.T, want, got *graph.Graph) {
	t.Helper()
	if !slices.Equal(want.Titles(), got.Titles()) {
		t.Fatalf("node order differs: want %q, got %q", want.Titles(), got.Titles())
	}
	if !slices.Equal(want.Edges(), got.Edges()) {
		t.Errorf("edges differ: want %v, got %v", want.Edges(), got.Edges())
	}
	for _, wn := range want.Nodes() {
		gn, _ := got.Node(wn.Title)
		if wn.Hop != gn.Hop || wn.LinkCount != gn.LinkCount || wn.NoViews != gn.NoViews {
			t.Errorf("node %q attributes differ: want %+v, got %+v", wn.Title, wn, gn)
		}
		if wn.HasDelta() != gn.HasDelta() || (wn.HasDelta() && *wn.Delta != *gn.Delta) {
			t.Errorf("node %q delta differs", wn.Title)
		}
	}
	wm, gm := want.Meta, got.Meta
	if wm.Name != gm.Name || wm.Seed != gm.Seed || wm.RunID != gm.RunID ||
		!wm.AsOf.Equal(gm.AsOf) || !wm.ViewsStart.Equal(gm.ViewsStart) || !wm.CreatedAt.Equal(gm.CreatedAt) {
		t.Errorf("meta differs: want %+v, got %+v", wm, gm)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	want := sampleGraph("StanLee")
	if err := s.Save(context.Background(), want); err != nil {
		t.Fatalf("save error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "StanLee.graph.json")); err != nil {
		t.Fatalf("expected graph file: %v", err)
	}

	got, err := s.Load(context.Background(), "StanLee")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	assertSameGraph(t, want, got)

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected temp files cleaned up, found %d entries", len(entries))
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	s, _ := NewFileStore(t.TempDir(), testLogger)
	g := sampleGraph("StanLee")
	s.Save(context.Background(), g)

	g.AddNode(graph.Node{Title: "Excelsior", Hop: 2})
	if err := s.Save(context.Background(), g); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(context.Background(), "StanLee")
	if err != nil {
		t.Fatal(err)
	}
	if got.NodeCount() != 4 {
		t.Errorf("expected overwritten graph with 4 nodes, got %d", got.NodeCount())
	}
}

func TestFileStoreMissing(t *testing.T) {
	s, _ := NewFileStore(t.TempDir(), testLogger)
	_, err := s.Load(context.Background(), "Nobody")
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	var se *types.StorageError
	if !errors.As(err, &se) || se.Backend != "file" {
		t.Errorf("expected file StorageError, got %v", err)
	}
}

func TestFileStoreRequiresName(t *testing.T) {
	s, _ := NewFileStore(t.TempDir(), testLogger)
	if err := s.Save(context.Background(), graph.New()); err == nil {
		t.Error("expected error saving an unnamed graph")
	}
}

func TestLoadFileDerivesName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Legacy.graph.json")
	os.WriteFile(path, []byte(`{"meta":{"seed":"X"},"nodes":[{"title":"X","hop":0,"link_count":0}],"edges":[]}`), 0o644)

	g, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if g.Meta.Name != "Legacy" || g.NodeCount() != 1 {
		t.Errorf("unexpected graph %+v with %d nodes", g.Meta, g.NodeCount())
	}
}

func TestLoadFileRejectsDanglingEdge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.graph.json")
	os.WriteFile(path, []byte(`{"meta":{"name":"bad"},"nodes":[{"title":"X"}],"edges":[{"from":"X","to":"Y"}]}`), 0o644)

	if _, err := LoadFile(path); !errors.Is(err, types.ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode, got %v", err)
	}
}

func TestCSVExport(t *testing.T) {
	dir := t.TempDir()
	e, err := NewCSVExporter(dir, testLogger)
	if err != nil {
		t.Fatal(err)
	}

	nodesPath, edgesPath, err := e.Export(sampleGraph("StanLee"))
	if err != nil {
		t.Fatalf("export error: %v", err)
	}

	nodes := readCSV(t, nodesPath)
	if len(nodes) != 4 {
		t.Fatalf("expected header + 3 node rows, got %d", len(nodes))
	}
	if !slices.Equal(nodes[1], []string{"Stan Lee", "0", "3", "0", "2", "400", "false"}) {
		t.Errorf("unexpected seed row %q", nodes[1])
	}
	if !slices.Equal(nodes[2], []string{"Marvel Comics", "1", "2", "2", "0", "", "false"}) {
		t.Errorf("unexpected unannotated row %q", nodes[2])
	}

	edges := readCSV(t, edgesPath)
	if len(edges) != 4 || !slices.Equal(edges[0], []string{"source", "target"}) {
		t.Errorf("unexpected edge table %q", edges)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

// failingStore always fails to save.
type failingStore struct{ name string }

func (f *failingStore) Save(context.Context, *graph.Graph) error {
	return &types.StorageError{Backend: f.name, Op: "save", Err: errors.New("disk full")}
}
func (f *failingStore) Load(context.Context, string) (*graph.Graph, error) {
	return nil, types.ErrNotFound
}
func (f *failingStore) Close() error { return nil }
func (f *failingStore) Name() string { return f.name }

func TestMultiStoreCollectsErrors(t *testing.T) {
	file, _ := NewFileStore(t.TempDir(), testLogger)
	m := NewMultiStore([]GraphStore{file, &failingStore{"a"}, &failingStore{"b"}}, testLogger)

	err := m.Save(context.Background(), sampleGraph("StanLee"))
	if err == nil {
		t.Fatal("expected an aggregated error")
	}
	var se *types.StorageError
	if !errors.As(err, &se) {
		t.Errorf("expected StorageError inside %v", err)
	}

	// The file backend still received the graph and serves loads.
	if _, err := m.Load(context.Background(), "StanLee"); err != nil {
		t.Errorf("expected load from first backend, got %v", err)
	}
}

func TestNewUnknownType(t *testing.T) {
	cfg := &config.StorageConfig{Type: "file,cassandra", OutputPath: t.TempDir()}
	if _, err := New(context.Background(), cfg, testLogger); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewFanOut(t *testing.T) {
	cfg := &config.StorageConfig{Type: "file", OutputPath: t.TempDir()}
	s, err := New(context.Background(), cfg, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "file" {
		t.Errorf("expected single file backend, got %s", s.Name())
	}
}

func TestMongoStoreRoundTrip(t *testing.T) {
	uri := os.Getenv("WIKIGRAPH_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("WIKIGRAPH_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := NewMongoStore(ctx, uri, "wikigraph_test", testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	want := sampleGraph("StanLeeMongo")
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save error: %v", err)
	}
	got, err := s.Load(ctx, "StanLeeMongo")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	assertSameGraph(t, want, got)

	if _, err := s.Load(ctx, "Nobody"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("WIKIGRAPH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WIKIGRAPH_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	want := sampleGraph("StanLeePostgres")
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save error: %v", err)
	}
	// Saving twice replaces rather than duplicates.
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("second save error: %v", err)
	}
	got, err := s.Load(ctx, "StanLeePostgres")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	assertSameGraph(t, want, got)

	if _, err := s.Load(ctx, "Nobody"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
