package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/hashicorp/go-multierror"

	"github.com/IshaanNene/wikigraph/internal/engine"
	"github.com/IshaanNene/wikigraph/internal/graph"
	"github.com/IshaanNene/wikigraph/internal/observability"
	"github.com/IshaanNene/wikigraph/internal/storage"
	"github.com/IshaanNene/wikigraph/internal/types"
	"github.com/IshaanNene/wikigraph/internal/views"
)

// Components are the collaborators a Runner wires into its stages.
type Components struct {
	Crawler   *engine.Crawler // unused when resuming
	Annotator *views.Annotator
	Store     storage.GraphStore
	Exporter  *storage.CSVExporter   // nil disables CSV export
	Metrics   *observability.Metrics // may be nil
}

// Options controls a Runner.
type Options struct {
	DaysBefore int
	DaysAfter  int
	Resume     bool // load the checkpoint graph instead of crawling
}

// Report summarises one seed run.
type Report struct {
	Seed       types.Seed
	Name       string
	RunID      string
	Resumed    bool
	Exhausted  bool
	ViewsStart time.Time
	ViewsEnd   time.Time
	Summary    graph.Summary
	Excluded   []string
	Outputs    []string
	Duration   time.Duration
}

// Runner turns seeds into annotated, stored graphs.
type Runner struct {
	pipeline *Pipeline
	opts     Options
	logger   *slog.Logger
}

// NewRunner assembles the stage chain for the given options.
func NewRunner(c Components, opts Options, logger *slog.Logger) (*Runner, error) {
	if c.Annotator == nil || c.Store == nil {
		return nil, types.InvalidArgument("runner", "annotator and store are required")
	}
	if !opts.Resume && c.Crawler == nil {
		return nil, types.InvalidArgument("runner", "crawler is required unless resuming from a checkpoint")
	}
	if opts.DaysBefore < 0 || opts.DaysAfter < 0 {
		return nil, types.InvalidArgument("runner", "window days must be >= 0, got %d/%d", opts.DaysBefore, opts.DaysAfter)
	}

	p := New(logger)
	if opts.Resume {
		p.Use(&ResumeStage{Store: c.Store, Metrics: c.Metrics})
	} else {
		p.Use(&CrawlStage{Crawler: c.Crawler})
		p.Use(&BuildStage{Metrics: c.Metrics})
		p.Use(&CheckpointStage{Store: c.Store})
	}
	p.Use(&AnnotateStage{Annotator: c.Annotator})
	p.Use(&SaveStage{Store: c.Store})
	if c.Exporter != nil {
		p.Use(&ExportStage{Exporter: c.Exporter})
	}

	return &Runner{
		pipeline: p,
		opts:     opts,
		logger:   logger.With("component", "runner"),
	}, nil
}

// Stages returns the names of the configured stages in order.
func (r *Runner) Stages() []string { return r.pipeline.Stages() }

// Run processes one seed.
func (r *Runner) Run(ctx context.Context, seed types.Seed) (*Report, error) {
	name := OutputName(seed.Article)
	if name == "" {
		return nil, types.InvalidArgument("runner", "seed %q has no alphanumeric characters", seed.Article)
	}

	began := time.Now()
	start, end := views.Window(seed.Date, r.opts.DaysBefore, r.opts.DaysAfter)
	run := &Run{
		Seed:       seed,
		Name:       name,
		ViewsStart: start,
		ViewsEnd:   end,
	}

	r.logger.Info("seed run starting",
		"seed", seed.Article,
		"date", seed.Date.Format(time.DateOnly),
		"name", name,
		"stages", r.pipeline.Stages(),
	)
	if err := r.pipeline.Process(ctx, run); err != nil {
		return nil, err
	}

	report := &Report{
		Seed:       seed,
		Name:       name,
		RunID:      run.Graph.Meta.RunID,
		Resumed:    run.Resumed,
		ViewsStart: start,
		ViewsEnd:   end,
		Summary:    graph.Summarize(run.Graph),
		Outputs:    run.Outputs,
		Duration:   time.Since(began),
	}
	if run.Crawl != nil {
		report.Exhausted = run.Crawl.Exhausted
	}
	if run.Annotation != nil {
		report.Excluded = run.Annotation.Excluded
	}

	r.logger.Info("seed run complete",
		"seed", seed.Article,
		"nodes", report.Summary.Nodes,
		"edges", report.Summary.Edges,
		"excluded", len(report.Excluded),
		"elapsed", report.Duration,
	)
	return report, nil
}

// RunAll processes seeds in order. A failing seed does not stop the others;
// all failures are returned together. Cancellation stops the loop.
func (r *Runner) RunAll(ctx context.Context, seeds []types.Seed) ([]*Report, error) {
	var (
		reports []*Report
		result  *multierror.Error
	)
	for _, seed := range seeds {
		report, err := r.Run(ctx, seed)
		if err != nil {
			result = multierror.Append(result, err)
			if ctx.Err() != nil {
				break
			}
			level := slog.LevelError
			if errors.Is(err, types.ErrEmptyGraph) {
				level = slog.LevelWarn
			}
			r.logger.Log(ctx, level, "seed run failed", "seed", seed.Article, "error", err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, result.ErrorOrNil()
}

// OutputName keeps the letters and digits of a seed title, so "Stan Lee"
// is stored as "StanLee".
func OutputName(seed string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, seed)
}
