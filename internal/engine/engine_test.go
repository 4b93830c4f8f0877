package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/IshaanNene/wikigraph/internal/sampler"
	"github.com/IshaanNene/wikigraph/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type mockFetcher struct {
	pages     map[string][]string
	redirects map[string]string
	fail      map[string]bool
	block     map[string]bool

	mu    sync.Mutex
	calls map[string]int
}

func newMockFetcher(pages map[string][]string) *mockFetcher {
	return &mockFetcher{
		pages:     pages,
		redirects: map[string]string{},
		fail:      map[string]bool{},
		block:     map[string]bool{},
		calls:     map[string]int{},
	}
}

func (m *mockFetcher) FetchLinks(ctx context.Context, title string, _ time.Time) (*types.Page, error) {
	m.mu.Lock()
	m.calls[title]++
	m.mu.Unlock()

	if m.block[title] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.fail[title] {
		return nil, &types.FetchError{Title: title, Err: errors.New("connection reset")}
	}
	target := title
	if to, ok := m.redirects[title]; ok {
		target = to
	}
	links, ok := m.pages[target]
	if !ok {
		return nil, &types.FetchError{Title: title, StatusCode: 404, Err: types.ErrNotFound}
	}
	return &types.Page{Title: target, Links: slices.Clone(links)}, nil
}

func (m *mockFetcher) callCount(title string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[title]
}

func (m *mockFetcher) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// fullSampling enqueues every link, which makes the crawl order predictable.
func fullSampling(maxNodes, minPopularity int) Options {
	return Options{
		MaxNodes:          maxNodes,
		Hop1SampleSize:    1000,
		IndirectSampleMin: 1000,
		IndirectSampleMax: 1000,
		MinPopularity:     minPopularity,
		SeedBias:          sampler.Bias{TopFraction: 0.1, TopShare: 0.5},
		IndirectBias:      sampler.Bias{TopFraction: 0.4, TopShare: 0.5},
		RandomSeed:        1,
	}
}

var asOf = time.Date(2018, 11, 12, 0, 0, 0, 0, time.UTC)

func TestCrawlMaxNodesOne(t *testing.T) {
	f := newMockFetcher(map[string][]string{
		"Seed": {"A", "B", "C"},
		"A":    {"B", "C", "Seed"},
	})
	c := New(f, fullSampling(1, 2), testLogger, nil)

	res, err := c.Crawl(context.Background(), "Seed", asOf)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	if got := res.Articles.Titles(); !slices.Equal(got, []string{"Seed"}) {
		t.Errorf("expected only the seed, got %v", got)
	}
	if res.Exhausted {
		t.Error("expected budget stop, not exhaustion")
	}
	if f.totalCalls() != 1 {
		t.Errorf("expected exactly one fetch, got %d", f.totalCalls())
	}
	if !slices.Equal(res.Pending, []string{"A", "B", "C"}) {
		t.Errorf("expected [A B C] left in the frontier, got %v", res.Pending)
	}
	if c.GetState() != StateDone {
		t.Errorf("expected state done, got %s", c.GetState())
	}
}

func TestCrawlFailingSeed(t *testing.T) {
	f := newMockFetcher(map[string][]string{})
	f.fail["Seed"] = true
	c := New(f, fullSampling(10, 2), testLogger, nil)

	res, err := c.Crawl(context.Background(), "Seed", asOf)
	if err != nil {
		t.Fatalf("expected fetch failures to be absorbed, got %v", err)
	}
	if res.Articles.Len() != 0 {
		t.Errorf("expected empty result, got %v", res.Articles.Titles())
	}
	if !res.Exhausted {
		t.Error("expected frontier exhaustion")
	}
	if res.Rejected["Seed"] != RejectFetchError {
		t.Errorf("expected seed rejected as %q, got %q", RejectFetchError, res.Rejected["Seed"])
	}
}

func TestCrawlFiltersStubsAndFailures(t *testing.T) {
	f := newMockFetcher(map[string][]string{
		"A": {"B", "C", "D", "E"},
		"B": {"A", "X"},
		"C": {"A", "B", "F"},
		"E": {"A", "C", "F", "G"},
		"F": {"A", "B", "C"},
		"G": {},
		"X": {"A", "B", "C", "E"},
	})
	c := New(f, fullSampling(10, 2), testLogger, nil)

	res, err := c.Crawl(context.Background(), "A", asOf)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}

	if got := res.Articles.Titles(); !slices.Equal(got, []string{"A", "C", "E", "F"}) {
		t.Fatalf("expected [A C E F], got %v", got)
	}
	wantHops := map[string]int{"A": 0, "C": 1, "E": 1, "F": 2}
	for title, hop := range wantHops {
		if got := res.Articles.Get(title).Hop; got != hop {
			t.Errorf("expected hop %d for %s, got %d", hop, title, got)
		}
	}
	wantRejected := map[string]string{"B": RejectStub, "D": RejectFetchError, "G": RejectStub}
	for title, reason := range wantRejected {
		if res.Rejected[title] != reason {
			t.Errorf("expected %s rejected as %q, got %q", title, reason, res.Rejected[title])
		}
	}
	if f.callCount("X") != 0 {
		t.Error("links of a stub must never be followed")
	}
	if !res.Exhausted {
		t.Error("expected frontier exhaustion")
	}
	for _, title := range res.Articles.Titles() {
		if n := len(res.Articles.Get(title).Links); n <= 2 {
			t.Errorf("admitted %s with only %d links", title, n)
		}
	}
}

func TestCrawlNormalizesSeedTitle(t *testing.T) {
	f := newMockFetcher(map[string][]string{
		"Stan Lee":      {"Marvel Comics", "X1", "X2"},
		"Marvel Comics": {"Stan Lee", "Y1", "Y2"},
	})

	res, err := New(f, fullSampling(10, 2), testLogger, nil).Crawl(context.Background(), "stan_Lee", asOf)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	if got := res.Articles.Titles(); !slices.Equal(got, []string{"Stan Lee", "Marvel Comics"}) {
		t.Fatalf("expected [Stan Lee, Marvel Comics], got %v", got)
	}
	if res.Seed != "Stan Lee" {
		t.Errorf("expected normalised seed, got %q", res.Seed)
	}
	if f.callCount("stan_Lee") != 0 || f.callCount("Stan Lee") != 1 {
		t.Errorf("expected one fetch of the normalised seed, got calls %v", f.calls)
	}
	if got := res.Articles.Get("Stan Lee").Hop; got != 0 {
		t.Errorf("expected seed at hop 0, got %d", got)
	}
}

func TestCrawlRejectsEmptySeed(t *testing.T) {
	f := newMockFetcher(map[string][]string{})
	_, err := New(f, fullSampling(10, 2), testLogger, nil).Crawl(context.Background(), " _ ", asOf)
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestCrawlRedirectToQueuedArticleIsDropped(t *testing.T) {
	f := newMockFetcher(map[string][]string{
		"Seed":       {"Spiderman", "Spider-Man", "Web"},
		"Spider-Man": {"Seed", "Marvel", "Web"},
		"Web":        {"Seed", "Spiderman", "X"},
	})
	f.redirects["Spiderman"] = "Spider-Man"

	res, err := New(f, fullSampling(10, 2), testLogger, nil).Crawl(context.Background(), "Seed", asOf)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	if got := res.Articles.Titles(); !slices.Equal(got, []string{"Seed", "Spider-Man", "Web"}) {
		t.Fatalf("expected [Seed Spider-Man Web], got %v", got)
	}
	if res.Rejected["Spiderman"] != RejectDuplicate {
		t.Errorf("expected redirect rejected as %q, got %q", RejectDuplicate, res.Rejected["Spiderman"])
	}
	if got := res.Articles.Resolve("Spiderman"); got != "Spider-Man" {
		t.Errorf("expected alias to resolve to Spider-Man, got %q", got)
	}
	if f.callCount("Spiderman") != 1 || f.callCount("Spider-Man") != 1 {
		t.Errorf("expected each title fetched once, got calls %v", f.calls)
	}
}

func TestCrawlRedirectAdmittedUnderTargetTitle(t *testing.T) {
	f := newMockFetcher(map[string][]string{
		"Seed":       {"Spiderman", "A", "B"},
		"Spider-Man": {"Seed", "A", "Spiderman"},
	})
	f.redirects["Spiderman"] = "Spider-Man"

	res, err := New(f, fullSampling(10, 2), testLogger, nil).Crawl(context.Background(), "Seed", asOf)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	if got := res.Articles.Titles(); !slices.Equal(got, []string{"Seed", "Spider-Man"}) {
		t.Fatalf("expected [Seed Spider-Man], got %v", got)
	}
	if res.Articles.Has("Spiderman") {
		t.Error("redirect title must not become a node")
	}
	if got := res.Articles.Get("Spider-Man").Hop; got != 1 {
		t.Errorf("expected Spider-Man at hop 1, got %d", got)
	}
	if f.callCount("Spider-Man") != 0 {
		t.Error("target of an admitted redirect must not be fetched again")
	}
}

func TestCrawlSeedSampleSize(t *testing.T) {
	pages := map[string][]string{"Seed": nil}
	for i := 0; i < 50; i++ {
		title := fmt.Sprintf("L%d", i)
		pages["Seed"] = append(pages["Seed"], title)
		pages[title] = nil
	}
	f := newMockFetcher(pages)
	opts := fullSampling(100, 2)
	opts.Hop1SampleSize = 5

	res, err := New(f, opts, testLogger, nil).Crawl(context.Background(), "Seed", asOf)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	if got := res.Stats.Enqueued.Load(); got != 6 {
		t.Errorf("expected seed plus 5 sampled links enqueued, got %d", got)
	}
	if got := res.Stats.Stubs.Load(); got != 5 {
		t.Errorf("expected 5 stubs, got %d", got)
	}
}

// syntheticWiki builds n pages with 40 distinct links each; every fifth page
// is a stub.
func syntheticWiki(n int) map[string][]string {
	pages := make(map[string][]string, n)
	for i := 0; i < n; i++ {
		count := 40
		if i%5 == 0 {
			count = 10
		}
		links := make([]string, 0, count)
		for j := 0; j < count; j++ {
			links = append(links, fmt.Sprintf("P%d", (i*7+j*13)%n))
		}
		pages[fmt.Sprintf("P%d", i)] = links
	}
	return pages
}

func realisticOptions(concurrency int) Options {
	return Options{
		MaxNodes:          50,
		Hop1SampleSize:    20,
		IndirectSampleMin: 5,
		IndirectSampleMax: 10,
		MinPopularity:     30,
		SeedBias:          sampler.Bias{TopFraction: 0.1, TopShare: 0.5},
		IndirectBias:      sampler.Bias{TopFraction: 0.4, TopShare: 0.5},
		Concurrency:       concurrency,
		RandomSeed:        7,
	}
}

func TestCrawlConcurrencyMatchesSequential(t *testing.T) {
	pages := syntheticWiki(300)

	seq := newMockFetcher(pages)
	want, err := New(seq, realisticOptions(1), testLogger, nil).Crawl(context.Background(), "P1", asOf)
	if err != nil {
		t.Fatalf("sequential crawl error: %v", err)
	}

	par := newMockFetcher(pages)
	got, err := New(par, realisticOptions(4), testLogger, nil).Crawl(context.Background(), "P1", asOf)
	if err != nil {
		t.Fatalf("parallel crawl error: %v", err)
	}

	if !slices.Equal(want.Articles.Titles(), got.Articles.Titles()) {
		t.Errorf("expected identical admission order:\nseq %v\npar %v", want.Articles.Titles(), got.Articles.Titles())
	}
	if got.Articles.Len() > 50 {
		t.Errorf("node budget exceeded: %d", got.Articles.Len())
	}
	for _, f := range []*mockFetcher{seq, par} {
		f.mu.Lock()
		for title, n := range f.calls {
			if n > 1 {
				t.Errorf("%s fetched %d times", title, n)
			}
		}
		f.mu.Unlock()
	}
}

func TestCrawlSameSeedIsReproducible(t *testing.T) {
	pages := syntheticWiki(300)
	a, err := New(newMockFetcher(pages), realisticOptions(1), testLogger, nil).Crawl(context.Background(), "P3", asOf)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	b, err := New(newMockFetcher(pages), realisticOptions(1), testLogger, nil).Crawl(context.Background(), "P3", asOf)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	if !slices.Equal(a.Articles.Titles(), b.Articles.Titles()) {
		t.Errorf("expected identical results for identical random seeds")
	}
}

func TestCrawlInvalidOptions(t *testing.T) {
	f := newMockFetcher(map[string][]string{})
	opts := fullSampling(0, 2)

	_, err := New(f, opts, testLogger, nil).Crawl(context.Background(), "Seed", asOf)
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if f.totalCalls() != 0 {
		t.Errorf("expected no fetches, got %d", f.totalCalls())
	}
}

func TestCrawlAbortsOnSamplerError(t *testing.T) {
	f := newMockFetcher(map[string][]string{
		"Seed": {"A", "B", "C"},
		"A":    {"B", "C", "Seed"},
	})
	opts := fullSampling(10, 2)
	opts.SeedBias = sampler.Bias{TopFraction: 2, TopShare: 0.5}

	res, err := New(f, opts, testLogger, nil).Crawl(context.Background(), "Seed", asOf)
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if res == nil || res.Articles.Len() != 1 {
		t.Errorf("expected partial result holding the seed")
	}
}

func TestCrawlRequestTimeoutIsFetchError(t *testing.T) {
	f := newMockFetcher(map[string][]string{
		"Seed": {"Slow", "A", "B"},
		"A":    {"Seed", "B", "Slow"},
	})
	f.block["Slow"] = true
	opts := fullSampling(10, 2)
	opts.RequestTimeout = 20 * time.Millisecond

	res, err := New(f, opts, testLogger, nil).Crawl(context.Background(), "Seed", asOf)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	if res.Rejected["Slow"] != RejectFetchError {
		t.Errorf("expected timed-out article rejected as fetch error, got %q", res.Rejected["Slow"])
	}
	if got := res.Articles.Titles(); !slices.Equal(got, []string{"Seed", "A"}) {
		t.Errorf("expected [Seed A], got %v", got)
	}
}

func TestCrawlContextCancel(t *testing.T) {
	f := newMockFetcher(syntheticWiki(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := realisticOptions(3)
	admitted := 0
	opts.OnAdmit = func(a *types.Article, n int) {
		admitted = n
		cancel()
	}

	res, err := New(f, opts, testLogger, nil).Crawl(ctx, "P1", asOf)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Articles.Len() != 1 || admitted != 1 {
		t.Errorf("expected crawl to stop after the first admission, got %d", res.Articles.Len())
	}
}

func TestStatsSnapshot(t *testing.T) {
	s := &Stats{StartTime: time.Now()}
	s.Fetched.Add(10)
	s.Admitted.Add(4)
	s.Stubs.Add(5)
	s.FetchErrors.Add(1)

	snap := s.Snapshot()
	if snap["fetched"].(int64) != 10 {
		t.Errorf("expected 10 fetched, got %v", snap["fetched"])
	}
	if snap["admitted"].(int64) != 4 {
		t.Errorf("expected 4 admitted, got %v", snap["admitted"])
	}
	if snap["stubs"].(int64) != 5 {
		t.Errorf("expected 5 stubs, got %v", snap["stubs"])
	}
}
