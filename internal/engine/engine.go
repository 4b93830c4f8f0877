package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/wikigraph/internal/config"
	"github.com/IshaanNene/wikigraph/internal/observability"
	"github.com/IshaanNene/wikigraph/internal/parser"
	"github.com/IshaanNene/wikigraph/internal/sampler"
	"github.com/IshaanNene/wikigraph/internal/types"
)

// State is the crawler's position in its two-state machine.
type State int32

const (
	StateExploring State = 0
	StateDone      State = 1
)

func (s State) String() string {
	switch s {
	case StateExploring:
		return "exploring"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Rejection reasons recorded in Result.Rejected.
const (
	RejectFetchError = "fetch_error"
	RejectStub       = "stub"
	RejectDuplicate  = "duplicate" // redirect to an article already queued or admitted
)

// PageFetcher returns the filtered, deduplicated outgoing links of an
// article, in page order, as of the most recent revision at or before asOf,
// together with the canonical title the request resolved to. An empty
// Page.Title means title itself. A zero asOf means the latest revision.
// Failures are *types.FetchError.
type PageFetcher interface {
	FetchLinks(ctx context.Context, title string, asOf time.Time) (*types.Page, error)
}

// Options configures a crawl.
type Options struct {
	MaxNodes          int
	Hop1SampleSize    int
	IndirectSampleMin int
	IndirectSampleMax int
	MinPopularity     int
	SeedBias          sampler.Bias
	IndirectBias      sampler.Bias
	Concurrency       int           // frontier titles fetched ahead of the consumer
	RequestTimeout    time.Duration // per article fetch
	RandomSeed        uint64        // 0 picks a random seed

	// OnAdmit is called after an article enters the map, may be nil.
	OnAdmit func(a *types.Article, admitted int)
}

// OptionsFromConfig maps the crawl section of the config onto Options.
func OptionsFromConfig(cfg *config.CrawlConfig) Options {
	return Options{
		MaxNodes:          cfg.MaxNodes,
		Hop1SampleSize:    cfg.Hop1SampleSize,
		IndirectSampleMin: cfg.IndirectSampleMin,
		IndirectSampleMax: cfg.IndirectSampleMax,
		MinPopularity:     cfg.MinPopularity,
		SeedBias:          sampler.Bias{TopFraction: cfg.SeedBias.TopFraction, TopShare: cfg.SeedBias.TopShare},
		IndirectBias:      sampler.Bias{TopFraction: cfg.IndirectBias.TopFraction, TopShare: cfg.IndirectBias.TopShare},
		Concurrency:       cfg.Concurrency,
		RequestTimeout:    cfg.RequestTimeout,
		RandomSeed:        cfg.RandomSeed,
	}
}

func (o *Options) applyDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
}

func (o *Options) validate() error {
	const op = "crawl"
	if o.MaxNodes < 1 {
		return types.InvalidArgument(op, "max nodes must be >= 1, got %d", o.MaxNodes)
	}
	if o.Hop1SampleSize < 0 {
		return types.InvalidArgument(op, "hop-1 sample size must be >= 0, got %d", o.Hop1SampleSize)
	}
	if o.IndirectSampleMin < 0 || o.IndirectSampleMax < o.IndirectSampleMin {
		return types.InvalidArgument(op, "indirect sample range [%d,%d] is invalid", o.IndirectSampleMin, o.IndirectSampleMax)
	}
	return nil
}

// Stats tracks crawl statistics.
type Stats struct {
	Fetched     atomic.Int64
	FetchErrors atomic.Int64
	Admitted    atomic.Int64
	Stubs       atomic.Int64
	Enqueued    atomic.Int64
	StartTime   time.Time
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"fetched":      s.Fetched.Load(),
		"fetch_errors": s.FetchErrors.Load(),
		"admitted":     s.Admitted.Load(),
		"stubs":        s.Stubs.Load(),
		"enqueued":     s.Enqueued.Load(),
		"elapsed":      time.Since(s.StartTime).String(),
	}
}

// Result is the outcome of one crawl.
type Result struct {
	Seed       string
	AsOf       time.Time
	RandomSeed uint64
	Articles   *types.ArticleLinks
	Rejected   map[string]string // title -> rejection reason
	Exhausted  bool              // frontier ran dry before the node budget
	Pending    []string          // titles still queued when the crawl stopped
	Stats      *Stats
}

// Crawler runs the bounded breadth-first crawl.
type Crawler struct {
	fetcher PageFetcher
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	state   atomic.Int32
}

// New creates a Crawler. metrics may be nil.
func New(fetcher PageFetcher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Crawler {
	opts.applyDefaults()
	return &Crawler{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.With("component", "crawler"),
		metrics: metrics,
	}
}

// GetState returns the crawler's current state.
func (c *Crawler) GetState() State {
	return State(c.state.Load())
}

type fetchCall struct {
	done     chan struct{}
	page     *types.Page
	err      error
	duration time.Duration
}

// Crawl explores the link graph from seed until the frontier empties or
// MaxNodes articles have been admitted.
//
// Up to Concurrency frontier titles are fetched ahead of time, but results
// are consumed strictly in FIFO order by this goroutine, so admission,
// sampling and the node budget match a sequential crawl exactly.
//
// Articles are keyed by the canonical title their fetch resolved to. A
// redirect whose target is already queued or admitted is dropped, and its
// title is kept as an alias so links naming it still become edges.
func (c *Crawler) Crawl(ctx context.Context, seed string, asOf time.Time) (*Result, error) {
	if err := c.opts.validate(); err != nil {
		return nil, err
	}
	seed = parser.NormalizeTitle(seed)
	if seed == "" {
		return nil, types.InvalidArgument("crawl", "empty seed title")
	}

	randomSeed := c.opts.RandomSeed
	if randomSeed == 0 {
		randomSeed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(randomSeed, titleHash(seed)))

	res := &Result{
		Seed:       seed,
		AsOf:       asOf,
		RandomSeed: randomSeed,
		Articles:   types.NewArticleLinks(),
		Rejected:   make(map[string]string),
		Stats:      &Stats{StartTime: time.Now()},
	}

	c.state.Store(int32(StateExploring))
	defer c.state.Store(int32(StateDone))

	c.logger.Info("crawl starting",
		"seed", seed,
		"as_of", asOf.Format(time.DateOnly),
		"max_nodes", c.opts.MaxNodes,
		"concurrency", c.opts.Concurrency,
		"random_seed", randomSeed,
	)

	fetchCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	inflight := make(map[string]*fetchCall)
	startFetch := func(title string) {
		call := &fetchCall{done: make(chan struct{})}
		inflight[title] = call
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(call.done)
			start := time.Now()
			call.page, call.err = c.fetch(fetchCtx, title, asOf)
			call.duration = time.Since(start)
		}()
	}

	frontier := NewFrontier()
	hops := map[string]int{seed: 0}
	frontier.Push(seed)
	res.Stats.Enqueued.Add(1)

	for res.Articles.Len() < c.opts.MaxNodes {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		for _, title := range frontier.Peek(c.opts.Concurrency) {
			if _, ok := inflight[title]; !ok {
				startFetch(title)
			}
		}

		title, ok := frontier.Pop()
		if !ok {
			res.Exhausted = true
			c.logger.Info("frontier exhausted before node budget",
				"admitted", res.Articles.Len(),
				"max_nodes", c.opts.MaxNodes,
			)
			break
		}
		c.metrics.SetFrontier(frontier.Len())

		call := inflight[title]
		delete(inflight, title)
		select {
		case <-call.done:
		case <-ctx.Done():
			return res, ctx.Err()
		}

		res.Stats.Fetched.Add(1)
		c.metrics.ObserveFetch(observability.FetchLinks, call.duration, call.err)

		if call.err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Stats.FetchErrors.Add(1)
			res.Rejected[title] = RejectFetchError
			c.metrics.Rejected(RejectFetchError)
			c.logger.Warn("article skipped", "title", title, "error", call.err)
			continue
		}

		name := title
		if call.page.Title != "" && call.page.Title != title {
			name = call.page.Title
			res.Articles.AddAlias(title, name)
			if res.Articles.Has(name) || !frontier.Claim(name) {
				res.Rejected[title] = RejectDuplicate
				c.metrics.Rejected(RejectDuplicate)
				c.logger.Debug("redirect to known article dropped", "title", title, "target", name)
				continue
			}
			hops[name] = hops[title]
		}

		links := call.page.Links
		if len(links) <= c.opts.MinPopularity {
			res.Stats.Stubs.Add(1)
			res.Rejected[name] = RejectStub
			c.metrics.Rejected(RejectStub)
			c.logger.Debug("stub discarded", "title", name, "links", len(links))
			continue
		}

		article := &types.Article{Title: name, Links: links, Hop: hops[name]}
		res.Articles.Add(article)
		res.Stats.Admitted.Add(1)
		c.metrics.Admitted()
		c.logger.Debug("article admitted", "title", name, "hop", article.Hop, "links", len(article.Links))
		if c.opts.OnAdmit != nil {
			c.opts.OnAdmit(article, res.Articles.Len())
		}

		nSample, bias := c.sampling(rng, title == seed)
		chosen, err := sampler.Sample(rng, len(article.Links), nSample, bias)
		if err != nil {
			return res, fmt.Errorf("crawl from %q: sample links of %q: %w", seed, name, err)
		}
		for _, idx := range chosen {
			link := article.Links[idx]
			if res.Articles.Has(res.Articles.Resolve(link)) {
				continue
			}
			if frontier.Push(link) {
				hops[link] = article.Hop + 1
				res.Stats.Enqueued.Add(1)
			}
		}
	}

	res.Pending = frontier.Snapshot()
	c.logger.Info("crawl complete",
		"seed", seed,
		"admitted", res.Articles.Len(),
		"rejected", len(res.Rejected),
		"pending", len(res.Pending),
		"exhausted", res.Exhausted,
		"stats", res.Stats.Snapshot(),
	)
	return res, nil
}

// sampling returns the sample size and bias for an admitted article.
func (c *Crawler) sampling(rng *rand.Rand, isSeed bool) (int, sampler.Bias) {
	if isSeed {
		return c.opts.Hop1SampleSize, c.opts.SeedBias
	}
	span := c.opts.IndirectSampleMax - c.opts.IndirectSampleMin + 1
	return c.opts.IndirectSampleMin + rng.IntN(span), c.opts.IndirectBias
}

// fetch retrieves one article's links under the per-request timeout. Any
// failure, including the timeout, is reported as a *types.FetchError.
func (c *Crawler) fetch(ctx context.Context, title string, asOf time.Time) (*types.Page, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	page, err := c.fetcher.FetchLinks(fetchCtx, title, asOf)
	if err != nil {
		if errors.Is(err, types.ErrFetch) {
			return nil, err
		}
		return nil, &types.FetchError{Title: title, Err: err}
	}
	if page == nil {
		return &types.Page{Title: title}, nil
	}
	return page, nil
}

func titleHash(title string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(title))
	return h.Sum64()
}
