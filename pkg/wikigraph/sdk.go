// Package wikigraph provides a public SDK for embedding wikigraph as a library.
//
// Example usage:
//
//	client, err := wikigraph.New(ctx,
//	    wikigraph.WithMaxNodes(200),
//	    wikigraph.WithOutput("file", "./output"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	report, err := client.Crawl(ctx, "Stan Lee", time.Date(2018, 11, 12, 0, 0, 0, 0, time.UTC))
package wikigraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/IshaanNene/wikigraph/internal/config"
	"github.com/IshaanNene/wikigraph/internal/engine"
	"github.com/IshaanNene/wikigraph/internal/fetcher"
	"github.com/IshaanNene/wikigraph/internal/graph"
	"github.com/IshaanNene/wikigraph/internal/observability"
	"github.com/IshaanNene/wikigraph/internal/pipeline"
	"github.com/IshaanNene/wikigraph/internal/storage"
	"github.com/IshaanNene/wikigraph/internal/types"
	"github.com/IshaanNene/wikigraph/internal/views"
)

type (
	// Seed is an article and its reference date.
	Seed = types.Seed
	// Report summarises one seed run.
	Report = pipeline.Report
	// Graph is an annotated link graph.
	Graph = graph.Graph
)

// ProgressFunc is called each time an article is admitted to the graph.
type ProgressFunc func(title string, hop, admitted int)

type settings struct {
	cfg      *config.Config
	logger   *slog.Logger
	resume   bool
	progress ProgressFunc
}

// Option configures a Client.
type Option func(*settings)

// WithConfig replaces the default configuration. Options applied after it
// still take effect.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithLogger sets the logger. The default logger follows the logging config.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithMaxNodes sets the node budget per graph.
func WithMaxNodes(n int) Option {
	return func(s *settings) { s.cfg.Crawl.MaxNodes = n }
}

// WithConcurrency sets how many articles are fetched ahead of the crawl.
func WithConcurrency(n int) Option {
	return func(s *settings) { s.cfg.Crawl.Concurrency = n }
}

// WithRandomSeed makes crawls reproducible.
func WithRandomSeed(seed uint64) Option {
	return func(s *settings) { s.cfg.Crawl.RandomSeed = seed }
}

// WithOutput sets the storage backend(s) and output directory.
func WithOutput(storageType, path string) Option {
	return func(s *settings) {
		s.cfg.Storage.Type = storageType
		s.cfg.Storage.OutputPath = path
	}
}

// WithEndpoints points the client at another MediaWiki API and pageviews
// endpoint, such as a different language edition or a mirror.
func WithEndpoints(apiURL, pageviewsURL string) Option {
	return func(s *settings) {
		s.cfg.Wiki.APIURL = apiURL
		s.cfg.Views.Endpoint = pageviewsURL
	}
}

// WithCSVExport writes node and edge CSV tables next to each graph.
func WithCSVExport() Option {
	return func(s *settings) { s.cfg.Storage.ExportCSV = true }
}

// WithResume annotates saved checkpoint graphs instead of crawling.
func WithResume() Option {
	return func(s *settings) { s.resume = true }
}

// OnAdmit registers a progress callback.
func OnAdmit(fn ProgressFunc) Option {
	return func(s *settings) { s.progress = fn }
}

// Client crawls and annotates seeds.
type Client struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	http    *fetcher.HTTPFetcher
	store   storage.GraphStore
	runner  *pipeline.Runner
}

// New validates the configuration and wires the crawl pipeline. When
// metrics are enabled their endpoint serves until Close.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	s := &settings{cfg: config.DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	cfg := s.cfg
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := s.logger
	if logger == nil {
		logger = observability.NewLogger(cfg.Logging, os.Stderr)
	}

	c := &Client{cfg: cfg, logger: logger}
	if cfg.Metrics.Enabled {
		c.metrics = observability.NewMetrics(logger)
		if err := c.metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	c.http = fetcher.NewHTTPFetcher(&cfg.HTTP, logger, c.metrics)

	var err error
	if c.store, err = storage.New(ctx, &cfg.Storage, logger); err != nil {
		c.Close()
		return nil, fmt.Errorf("create storage: %w", err)
	}

	comps := pipeline.Components{
		Annotator: views.NewAnnotator(
			fetcher.NewPageviews(c.http, &cfg.Views, logger),
			views.Options{Concurrency: cfg.Views.Concurrency, Granularity: types.Granularity(cfg.Views.Granularity)},
			logger, c.metrics,
		),
		Store:   c.store,
		Metrics: c.metrics,
	}
	if cfg.Storage.ExportCSV {
		if comps.Exporter, err = storage.NewCSVExporter(cfg.Storage.OutputPath, logger); err != nil {
			c.Close()
			return nil, fmt.Errorf("create exporter: %w", err)
		}
	}
	if !s.resume {
		wiki, err := fetcher.NewMediaWiki(c.http, &cfg.Wiki, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("create link fetcher: %w", err)
		}
		crawlOpts := engine.OptionsFromConfig(&cfg.Crawl)
		if s.progress != nil {
			progress := s.progress
			crawlOpts.OnAdmit = func(a *types.Article, admitted int) { progress(a.Title, a.Hop, admitted) }
		}
		comps.Crawler = engine.New(wiki, crawlOpts, logger, c.metrics)
	}

	c.runner, err = pipeline.NewRunner(comps, pipeline.Options{
		DaysBefore: cfg.Views.DaysBefore,
		DaysAfter:  cfg.Views.DaysAfter,
		Resume:     s.resume,
	}, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() *config.Config { return c.cfg }

// StoreName identifies the storage backend in use.
func (c *Client) StoreName() string { return c.store.Name() }

// Crawl runs one seed through crawl, annotation and storage.
func (c *Client) Crawl(ctx context.Context, article string, date time.Time) (*Report, error) {
	return c.runner.Run(ctx, Seed{Article: article, Date: date})
}

// Run processes seeds in order; a failing seed does not stop the others.
func (c *Client) Run(ctx context.Context, seeds []Seed) ([]*Report, error) {
	return c.runner.RunAll(ctx, seeds)
}

// Load reads a stored graph by name.
func (c *Client) Load(ctx context.Context, name string) (*Graph, error) {
	return c.store.Load(ctx, name)
}

// Close releases the store and the HTTP client and stops the metrics server.
func (c *Client) Close() error {
	var err error
	if c.store != nil {
		err = c.store.Close()
	}
	if c.http != nil {
		c.http.Close()
	}
	if c.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.metrics.Shutdown(ctx)
	}
	return err
}
