package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/IshaanNene/wikigraph/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(testLogger)

	m.ObserveFetch(FetchLinks, 10*time.Millisecond, nil)
	m.ObserveFetch(FetchLinks, 20*time.Millisecond, errors.New("boom"))
	m.ObserveFetch(FetchViews, 5*time.Millisecond, nil)
	m.Admitted()
	m.Admitted()
	m.Rejected("stub")
	m.ObserveResponse(200, 1024)
	m.ObserveResponse(503, 10)
	m.Retried()
	m.SetGraph(12, 40)

	if got := testutil.ToFloat64(m.fetches.WithLabelValues(FetchLinks, "ok")); got != 1 {
		t.Errorf("expected 1 successful link fetch, got %v", got)
	}
	if got := testutil.ToFloat64(m.fetches.WithLabelValues(FetchLinks, "error")); got != 1 {
		t.Errorf("expected 1 failed link fetch, got %v", got)
	}
	if got := testutil.ToFloat64(m.admitted); got != 2 {
		t.Errorf("expected 2 admitted, got %v", got)
	}
	if got := testutil.ToFloat64(m.rejected.WithLabelValues("stub")); got != 1 {
		t.Errorf("expected 1 stub, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpResponses.WithLabelValues("5xx")); got != 1 {
		t.Errorf("expected 1 5xx response, got %v", got)
	}
	if got := testutil.ToFloat64(m.bytesDownloaded); got != 1034 {
		t.Errorf("expected 1034 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(m.graphEdges); got != 40 {
		t.Errorf("expected 40 edges, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveFetch(FetchViews, time.Second, nil)
	m.Admitted()
	m.Rejected("stub")
	m.SetFrontier(3)
	m.ViewsExcluded(2)
	m.SetGraph(1, 1)
	if m.Registry() != nil {
		t.Error("expected nil registry from nil metrics")
	}
	if err := m.StartServer(9090, "/metrics"); err == nil {
		t.Error("expected error starting server on nil metrics")
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 301: "3xx", 404: "4xx", 429: "4xx", 503: "5xx", 0: "other"}
	for status, want := range tests {
		if got := statusClass(status); got != want {
			t.Errorf("statusClass(%d) = %q, expected %q", status, got, want)
		}
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug("crawl starting", "seed", "Stan Lee")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec["seed"] != "Stan Lee" {
		t.Errorf("expected seed attribute, got %v", rec)
	}
}

func TestNewLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestNewLoggerPretty(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "info", Format: "pretty"}, &buf)
	logger.Info("graph saved", "nodes", 42)

	if !strings.Contains(buf.String(), "graph saved") {
		t.Errorf("expected message in pretty output, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug {
		t.Error("expected case-insensitive debug level")
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Error("expected info fallback")
	}
}
