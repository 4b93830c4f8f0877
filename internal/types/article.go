package types

import "time"

// Article is one admitted crawl entry: its title, its filtered outgoing links
// in page order, and its hop distance from the seed.
type Article struct {
	Title string
	Links []string
	Hop   int
}

// Page is what a link fetch returns: the canonical title the request
// resolved to, after redirects, and its outgoing links in page order.
type Page struct {
	Title string
	Links []string
}

// ArticleLinks maps admitted article titles to their link sets while
// remembering admission order. Redirect titles seen during the crawl are
// kept as aliases of the article they resolve to.
type ArticleLinks struct {
	order    []string
	articles map[string]*Article
	aliases  map[string]string
}

// NewArticleLinks creates an empty ArticleLinks.
func NewArticleLinks() *ArticleLinks {
	return &ArticleLinks{
		articles: make(map[string]*Article),
		aliases:  make(map[string]string),
	}
}

// Add admits an article. Re-adding an existing title replaces its links but
// keeps its original position.
func (m *ArticleLinks) Add(a *Article) {
	if _, ok := m.articles[a.Title]; !ok {
		m.order = append(m.order, a.Title)
	}
	m.articles[a.Title] = a
}

// Has reports whether title has been admitted.
func (m *ArticleLinks) Has(title string) bool {
	_, ok := m.articles[title]
	return ok
}

// Get returns the admitted article for title, or nil.
func (m *ArticleLinks) Get(title string) *Article {
	return m.articles[title]
}

// Titles returns admitted titles in admission order.
func (m *ArticleLinks) Titles() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// AddAlias records that title redirects to target.
func (m *ArticleLinks) AddAlias(title, target string) {
	if title != target {
		m.aliases[title] = target
	}
}

// Resolve returns the title an alias redirects to, or title itself.
func (m *ArticleLinks) Resolve(title string) string {
	if target, ok := m.aliases[title]; ok {
		return target
	}
	return title
}

// Len returns the number of admitted articles.
func (m *ArticleLinks) Len() int {
	return len(m.order)
}

// Seed identifies one crawl: the seed article and its reference date.
type Seed struct {
	Article string
	Date    time.Time
}

// ViewPoint is one pageview sample.
type ViewPoint struct {
	Views     int64
	Timestamp time.Time
}

// ViewSeries is an ordered pageview time series for one article.
type ViewSeries []ViewPoint

// Granularity of a pageview series.
type Granularity string

const (
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
)
