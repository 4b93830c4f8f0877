package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch sources used as the "source" label.
const (
	FetchLinks = "links"
	FetchViews = "views"
)

// Metrics holds the Prometheus collectors for one process. All methods are
// safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry
	server   *http.Server
	logger   *slog.Logger

	fetches         *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	httpResponses   *prometheus.CounterVec
	httpRetries     prometheus.Counter
	bytesDownloaded prometheus.Counter
	admitted        prometheus.Counter
	rejected        *prometheus.CounterVec
	frontierDepth   prometheus.Gauge
	viewsExcluded   prometheus.Counter
	graphNodes      prometheus.Gauge
	graphEdges      prometheus.Gauge
}

// NewMetrics creates a Metrics instance backed by its own registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		logger:   logger.With("component", "metrics"),

		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wikigraph_fetches_total",
			Help: "Article link and pageview fetches, labelled by source and outcome.",
		}, []string{"source", "outcome"}),
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wikigraph_fetch_duration_seconds",
			Help:    "Fetch latency including retries.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		httpResponses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wikigraph_http_responses_total",
			Help: "HTTP responses from Wikimedia APIs, labelled by status class.",
		}, []string{"class"}),
		httpRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "wikigraph_http_retries_total",
			Help: "HTTP requests retried after a retryable failure.",
		}),
		bytesDownloaded: f.NewCounter(prometheus.CounterOpts{
			Name: "wikigraph_bytes_downloaded_total",
			Help: "Decoded response bytes read from Wikimedia APIs.",
		}),
		admitted: f.NewCounter(prometheus.CounterOpts{
			Name: "wikigraph_articles_admitted_total",
			Help: "Articles admitted into the crawl map.",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wikigraph_articles_rejected_total",
			Help: "Articles dropped during the crawl, labelled by reason.",
		}, []string{"reason"}),
		frontierDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "wikigraph_frontier_depth",
			Help: "Titles currently waiting in the crawl frontier.",
		}),
		viewsExcluded: f.NewCounter(prometheus.CounterOpts{
			Name: "wikigraph_views_excluded_total",
			Help: "Nodes whose pageviews could not be fetched.",
		}),
		graphNodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "wikigraph_graph_nodes",
			Help: "Nodes in the most recently built graph.",
		}),
		graphEdges: f.NewGauge(prometheus.GaugeOpts{
			Name: "wikigraph_graph_edges",
			Help: "Edges in the most recently built graph.",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFetch records one completed fetch.
func (m *Metrics) ObserveFetch(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.fetches.WithLabelValues(source, outcome).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveResponse records an HTTP status code and the decoded body size.
func (m *Metrics) ObserveResponse(status int, bytes int) {
	if m == nil {
		return
	}
	m.httpResponses.WithLabelValues(statusClass(status)).Inc()
	m.bytesDownloaded.Add(float64(bytes))
}

// Retried counts one HTTP retry.
func (m *Metrics) Retried() {
	if m == nil {
		return
	}
	m.httpRetries.Inc()
}

// Admitted counts one admitted article.
func (m *Metrics) Admitted() {
	if m == nil {
		return
	}
	m.admitted.Inc()
}

// Rejected counts one dropped article.
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// SetFrontier records the current frontier depth.
func (m *Metrics) SetFrontier(n int) {
	if m == nil {
		return
	}
	m.frontierDepth.Set(float64(n))
}

// ViewsExcluded counts nodes annotated without pageviews.
func (m *Metrics) ViewsExcluded(n int) {
	if m == nil {
		return
	}
	m.viewsExcluded.Add(float64(n))
}

// SetGraph records the size of a built graph.
func (m *Metrics) SetGraph(nodes, edges int) {
	if m == nil {
		return
	}
	m.graphNodes.Set(float64(nodes))
	m.graphEdges.Set(float64(edges))
}

// StartServer starts the metrics HTTP server in the background.
func (m *Metrics) StartServer(port int, path string) error {
	if m == nil {
		return errors.New("metrics are disabled")
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Shutdown stops the metrics server if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
