package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/wikigraph/internal/engine"
	"github.com/IshaanNene/wikigraph/internal/graph"
	"github.com/IshaanNene/wikigraph/internal/observability"
	"github.com/IshaanNene/wikigraph/internal/storage"
	"github.com/IshaanNene/wikigraph/internal/types"
	"github.com/IshaanNene/wikigraph/internal/views"
)

// CheckpointSuffix marks the unannotated graph saved after a crawl.
const CheckpointSuffix = "_checkpoint"

// CheckpointName returns the store name of a graph's checkpoint.
func CheckpointName(name string) string { return name + CheckpointSuffix }

// CrawlStage explores the link graph around the seed, pinned to the end of
// the pageview window.
type CrawlStage struct {
	Crawler *engine.Crawler
}

func (s *CrawlStage) Name() string { return "crawl" }

func (s *CrawlStage) Run(ctx context.Context, run *Run) error {
	res, err := s.Crawler.Crawl(ctx, run.Seed.Article, run.ViewsEnd)
	run.Crawl = res
	if err != nil {
		return err
	}
	if res.Articles.Len() == 0 {
		return fmt.Errorf("%w: seed %q", types.ErrEmptyGraph, run.Seed.Article)
	}
	return nil
}

// BuildStage turns the crawl result into a graph and stamps its metadata.
type BuildStage struct {
	Metrics *observability.Metrics
}

func (s *BuildStage) Name() string { return "build" }

func (s *BuildStage) Run(_ context.Context, run *Run) error {
	g := graph.Build(run.Crawl.Articles)
	g.Meta = graph.Meta{
		Name:       run.Name,
		Seed:       run.Seed.Article,
		AsOf:       run.Crawl.AsOf,
		ViewsStart: run.ViewsStart,
		ViewsEnd:   run.ViewsEnd,
		RunID:      uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
	}
	s.Metrics.SetGraph(g.NodeCount(), g.EdgeCount())
	run.Graph = g
	return nil
}

// CheckpointStage saves the unannotated graph so annotation can be retried
// without crawling again.
type CheckpointStage struct {
	Store storage.GraphStore
}

func (s *CheckpointStage) Name() string { return "checkpoint" }

func (s *CheckpointStage) Run(ctx context.Context, run *Run) error {
	meta := run.Graph.Meta
	run.Graph.Meta.Name = CheckpointName(run.Name)
	err := s.Store.Save(ctx, run.Graph)
	run.Graph.Meta = meta
	return err
}

// ResumeStage loads a checkpoint in place of crawl, build and checkpoint.
type ResumeStage struct {
	Store   storage.GraphStore
	Metrics *observability.Metrics
}

func (s *ResumeStage) Name() string { return "resume" }

func (s *ResumeStage) Run(ctx context.Context, run *Run) error {
	g, err := s.Store.Load(ctx, CheckpointName(run.Name))
	if err != nil {
		return err
	}
	if g.NodeCount() == 0 {
		return fmt.Errorf("%w: checkpoint %q", types.ErrEmptyGraph, CheckpointName(run.Name))
	}
	g.Meta.Name = run.Name
	g.Meta.ViewsStart = run.ViewsStart
	g.Meta.ViewsEnd = run.ViewsEnd
	if g.Meta.RunID == "" {
		g.Meta.RunID = uuid.NewString()
	}
	s.Metrics.SetGraph(g.NodeCount(), g.EdgeCount())
	run.Graph = g
	run.Resumed = true
	return nil
}

// AnnotateStage attaches pageview deltas to every node.
type AnnotateStage struct {
	Annotator *views.Annotator
}

func (s *AnnotateStage) Name() string { return "annotate" }

func (s *AnnotateStage) Run(ctx context.Context, run *Run) error {
	res, err := s.Annotator.Annotate(ctx, run.Graph, run.ViewsStart, run.ViewsEnd)
	run.Annotation = res
	return err
}

// SaveStage stores the annotated graph under the run's output name.
type SaveStage struct {
	Store storage.GraphStore
}

func (s *SaveStage) Name() string { return "save" }

func (s *SaveStage) Run(ctx context.Context, run *Run) error {
	if err := s.Store.Save(ctx, run.Graph); err != nil {
		return err
	}
	run.Outputs = append(run.Outputs, s.Store.Name()+":"+run.Name)
	return nil
}

// ExportStage writes the CSV node and edge tables.
type ExportStage struct {
	Exporter *storage.CSVExporter
}

func (s *ExportStage) Name() string { return "export" }

func (s *ExportStage) Run(_ context.Context, run *Run) error {
	nodes, edges, err := s.Exporter.Export(run.Graph)
	if err != nil {
		return err
	}
	run.Outputs = append(run.Outputs, nodes, edges)
	return nil
}
