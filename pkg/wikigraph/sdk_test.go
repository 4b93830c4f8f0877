package wikigraph

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IshaanNene/wikigraph/internal/config"
	"github.com/IshaanNene/wikigraph/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var wikitext = map[string]string{
	"Stan Lee":      "[[Marvel Comics]] co-created [[Spider-Man|the web-slinger]]. [[Category:Writers]]",
	"Marvel Comics": "Founded before [[Stan Lee]] joined; home of [[Spider-Man]].",
	"Spider-Man":    "Published by [[Marvel Comics]].",
}

var pageviews = map[string][2]int64{
	"Stan_Lee":      {13000, 5200000},
	"Marvel_Comics": {2000, 9000},
}

// fakeWikimedia serves the action API under /w/api.php and the pageviews
// REST API under /pageviews.
func fakeWikimedia(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		title := r.URL.Query().Get("titles")
		content, ok := wikitext[title]
		page := map[string]any{"title": title, "missing": true}
		if ok {
			page = map[string]any{"title": title, "revisions": []any{map[string]any{
				"revid":     1,
				"timestamp": "2018-11-01T00:00:00Z",
				"slots":     map[string]any{"main": map[string]any{"content": content}},
			}}}
		}
		json.NewEncoder(w).Encode(map[string]any{"query": map[string]any{"pages": []any{page}}})
	})
	mux.HandleFunc("/pageviews/", func(w http.ResponseWriter, r *http.Request) {
		// per-article/{project}/{access}/{agent}/{article}/{granularity}/{start}/{end}
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/pageviews/"), "/")
		counts, ok := pageviews[parts[4]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"items": []any{
			map[string]any{"timestamp": parts[6] + "00", "views": counts[0]},
			map[string]any{"timestamp": parts[7] + "00", "views": counts[1]},
		}})
	})
	return httptest.NewServer(mux)
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Crawl.MinPopularity = 0
	cfg.Crawl.RandomSeed = 1
	cfg.HTTP.RetryDelay = time.Millisecond
	cfg.Storage.OutputPath = t.TempDir()
	return cfg
}

func TestClientCrawl(t *testing.T) {
	srv := fakeWikimedia(t)
	defer srv.Close()

	var (
		mu       sync.Mutex
		admitted []string
	)
	client, err := New(context.Background(),
		WithConfig(testConfig(t)),
		WithLogger(testLogger),
		WithEndpoints(srv.URL+"/w/api.php", srv.URL+"/pageviews"),
		WithMaxNodes(10),
		WithCSVExport(),
		OnAdmit(func(title string, _, _ int) {
			mu.Lock()
			admitted = append(admitted, title)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	report, err := client.Crawl(context.Background(), "Stan Lee", time.Date(2018, 11, 12, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	if report.Summary.Nodes != 3 {
		t.Errorf("expected 3 nodes, got %d", report.Summary.Nodes)
	}
	if len(admitted) != 3 || admitted[0] != "Stan Lee" {
		t.Errorf("unexpected admission order %v", admitted)
	}
	if len(report.Outputs) != 3 {
		t.Errorf("expected graph plus two CSV outputs, got %v", report.Outputs)
	}

	g, err := client.Load(context.Background(), "StanLee")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if d := g.Deltas()["Stan Lee"]; d != 400 {
		t.Errorf("expected Stan Lee delta 400, got %v", d)
	}
	if d := g.Deltas()["Marvel Comics"]; d != 4.5 {
		t.Errorf("expected Marvel Comics delta 4.5, got %v", d)
	}
	if n, _ := g.Node("Spider-Man"); !n.NoViews {
		t.Error("expected Spider-Man without pageviews")
	}
	if !g.HasEdge("Stan Lee", "Spider-Man") || g.HasEdge("Spider-Man", "Stan Lee") {
		t.Errorf("unexpected edges %v", g.Edges())
	}
}

func TestClientResume(t *testing.T) {
	srv := fakeWikimedia(t)
	defer srv.Close()
	cfg := testConfig(t)
	date := time.Date(2018, 11, 12, 0, 0, 0, 0, time.UTC)

	first, err := New(context.Background(), WithConfig(cfg), WithLogger(testLogger),
		WithEndpoints(srv.URL+"/w/api.php", srv.URL+"/pageviews"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Crawl(context.Background(), "Stan Lee", date); err != nil {
		t.Fatal(err)
	}
	first.Close()

	resumed, err := New(context.Background(), WithConfig(cfg), WithLogger(testLogger), WithResume(),
		WithEndpoints(srv.URL+"/w/api.php", srv.URL+"/pageviews"))
	if err != nil {
		t.Fatal(err)
	}
	defer resumed.Close()

	report, err := resumed.Crawl(context.Background(), "Stan Lee", date)
	if err != nil {
		t.Fatalf("resume error: %v", err)
	}
	if !report.Resumed || report.Summary.Nodes != 3 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestClientEmptyGraph(t *testing.T) {
	srv := fakeWikimedia(t)
	defer srv.Close()

	client, err := New(context.Background(), WithConfig(testConfig(t)), WithLogger(testLogger),
		WithEndpoints(srv.URL+"/w/api.php", srv.URL+"/pageviews"))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	_, err = client.Run(context.Background(), []Seed{{Article: "Nobody", Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}})
	if !errors.Is(err, types.ErrEmptyGraph) {
		t.Errorf("expected ErrEmptyGraph, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), WithConfig(testConfig(t)), WithLogger(testLogger), WithMaxNodes(0))
	if err == nil {
		t.Error("expected invalid config to be rejected")
	}
}
