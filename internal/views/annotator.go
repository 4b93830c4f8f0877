// Package views annotates graph nodes with the change in pageviews around a
// reference date.
package views

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/wikigraph/internal/graph"
	"github.com/IshaanNene/wikigraph/internal/observability"
	"github.com/IshaanNene/wikigraph/internal/types"
)

// NeutralDelta is assigned when there is no usable pageview signal.
const NeutralDelta = 1.0

// SeriesFetcher returns an article's pageview series over [start, end].
// Failures are *types.FetchError.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, title string, start, end time.Time, granularity types.Granularity) (types.ViewSeries, error)
}

// Delta is the ratio of the last to the first observation of a series.
// Series with fewer than two points or a zero first value yield NeutralDelta.
func Delta(series types.ViewSeries) float64 {
	if len(series) < 2 || series[0].Views == 0 {
		return NeutralDelta
	}
	return float64(series[len(series)-1].Views) / float64(series[0].Views)
}

// Options configures an Annotator.
type Options struct {
	Concurrency int
	Granularity types.Granularity
}

// Result reports what an annotation pass did.
type Result struct {
	Deltas   map[string]float64 // deltas assigned in this pass
	Excluded []string           // nodes whose pageviews could not be fetched
	Skipped  []string           // nodes that already carried a delta
}

// Annotator assigns pageview deltas to graph nodes.
type Annotator struct {
	fetcher SeriesFetcher
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAnnotator creates an Annotator. metrics may be nil.
func NewAnnotator(fetcher SeriesFetcher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Annotator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Granularity == "" {
		opts.Granularity = types.Daily
	}
	return &Annotator{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.With("component", "annotator"),
		metrics: metrics,
	}
}

type outcome struct {
	delta   float64
	noViews bool
}

// Annotate fetches the pageview series of every node in g that has no delta
// yet and stores last/first as its delta. A node whose series cannot be
// fetched keeps its place in the graph with a neutral delta and is listed in
// Result.Excluded. Only context cancellation aborts the pass.
func (a *Annotator) Annotate(ctx context.Context, g *graph.Graph, start, end time.Time) (*Result, error) {
	res := &Result{Deltas: make(map[string]float64)}

	var pending []string
	for _, n := range g.Nodes() {
		if n.HasDelta() {
			res.Skipped = append(res.Skipped, n.Title)
			continue
		}
		pending = append(pending, n.Title)
	}

	a.logger.Info("annotating graph",
		"nodes", g.NodeCount(),
		"pending", len(pending),
		"start", start.Format(time.DateOnly),
		"end", end.Format(time.DateOnly),
	)

	outcomes := make([]outcome, len(pending))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.opts.Concurrency)
	for i, title := range pending {
		eg.Go(func() error {
			began := time.Now()
			series, err := a.fetcher.FetchSeries(egCtx, title, start, end, a.opts.Granularity)
			a.metrics.ObserveFetch(observability.FetchViews, time.Since(began), err)
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				if !errors.Is(err, types.ErrFetch) {
					err = &types.FetchError{Title: title, Err: err}
				}
				a.logger.Warn("pageviews unavailable", "title", title, "error", err)
				outcomes[i] = outcome{delta: NeutralDelta, noViews: true}
				return nil
			}
			outcomes[i] = outcome{delta: Delta(series)}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return res, err
	}

	for i, title := range pending {
		o := outcomes[i]
		if err := g.SetDelta(title, o.delta, o.noViews); err != nil {
			// Another pass annotated the node concurrently; keep its value.
			if errors.Is(err, types.ErrDeltaSet) {
				res.Skipped = append(res.Skipped, title)
				continue
			}
			return res, err
		}
		res.Deltas[title] = o.delta
		if o.noViews {
			res.Excluded = append(res.Excluded, title)
		}
	}
	a.metrics.ViewsExcluded(len(res.Excluded))

	a.logger.Info("annotation complete",
		"annotated", len(res.Deltas),
		"excluded", len(res.Excluded),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// Window returns the pageview window around a reference date.
func Window(ref time.Time, daysBefore, daysAfter int) (start, end time.Time) {
	return ref.AddDate(0, 0, -daysBefore), ref.AddDate(0, 0, daysAfter)
}
