package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/IshaanNene/wikigraph/internal/engine"
	"github.com/IshaanNene/wikigraph/internal/graph"
	"github.com/IshaanNene/wikigraph/internal/types"
	"github.com/IshaanNene/wikigraph/internal/views"
)

// Stage is one step of a seed run. Stages share state through *Run.
type Stage interface {
	// Name returns the stage's identifier.
	Name() string

	// Run advances the seed run. An error stops the pipeline.
	Run(ctx context.Context, run *Run) error
}

// Run carries the state of one seed through the pipeline.
type Run struct {
	Seed       types.Seed
	Name       string // output name of the annotated graph
	ViewsStart time.Time
	ViewsEnd   time.Time

	Crawl      *engine.Result
	Graph      *graph.Graph
	Annotation *views.Result
	Resumed    bool
	Outputs    []string
}

// Pipeline chains stages together.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use appends a stage to the chain.
func (p *Pipeline) Use(s Stage) {
	p.stages = append(p.stages, s)
	p.logger.Debug("stage added", "name", s.Name(), "position", len(p.stages))
}

// Process runs all stages in order. The first failure is returned as a
// *types.PipelineError naming the stage.
func (p *Pipeline) Process(ctx context.Context, run *Run) error {
	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return &types.PipelineError{Stage: s.Name(), Seed: run.Seed.Article, Err: err}
		}
		began := time.Now()
		if err := s.Run(ctx, run); err != nil {
			return &types.PipelineError{Stage: s.Name(), Seed: run.Seed.Article, Err: err}
		}
		p.logger.Debug("stage complete",
			"stage", s.Name(),
			"seed", run.Seed.Article,
			"elapsed", time.Since(began),
		)
	}
	return nil
}

// Len returns the number of stages in the chain.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Stages returns the stage names in order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}
