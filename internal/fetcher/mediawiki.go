package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/IshaanNene/wikigraph/internal/config"
	"github.com/IshaanNene/wikigraph/internal/parser"
	"github.com/IshaanNene/wikigraph/internal/types"
)

// MediaWiki reads article links through the MediaWiki action API, pinned to
// the latest revision at or before a date. It implements engine.PageFetcher.
type MediaWiki struct {
	http      Fetcher
	apiURL    string
	source    string
	extractor parser.LinkExtractor
	filter    *parser.Filter
	logger    *slog.Logger
}

// NewMediaWiki creates a MediaWiki link fetcher.
func NewMediaWiki(http Fetcher, cfg *config.WikiConfig, logger *slog.Logger) (*MediaWiki, error) {
	extractor, err := parser.NewExtractor(cfg.LinkSource, cfg.LinkSelector, logger)
	if err != nil {
		return nil, err
	}
	return &MediaWiki{
		http:      http,
		apiURL:    cfg.APIURL,
		source:    cfg.LinkSource,
		extractor: extractor,
		filter:    parser.NewFilter(cfg.ExcludedPrefixes),
		logger:    logger.With("component", "mediawiki"),
	}, nil
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type revisionsResponse struct {
	Error *apiError `json:"error"`
	Query struct {
		Redirects []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"redirects"`
		Pages []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			Invalid   bool   `json:"invalid"`
			Revisions []struct {
				RevID     int64     `json:"revid"`
				Timestamp time.Time `json:"timestamp"`
				Slots     struct {
					Main struct {
						Content string `json:"content"`
					} `json:"main"`
				} `json:"slots"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

type parseResponse struct {
	Error *apiError `json:"error"`
	Parse struct {
		Title string `json:"title"`
		RevID int64  `json:"revid"`
		Text  string `json:"text"`
	} `json:"parse"`
}

type revision struct {
	title   string // canonical, after normalisation and redirects
	id      int64
	content string
}

// FetchLinks implements engine.PageFetcher. Redirects are followed and the
// returned page carries the target's title. A zero asOf selects the latest
// revision.
func (m *MediaWiki) FetchLinks(ctx context.Context, title string, asOf time.Time) (*types.Page, error) {
	withContent := m.source == "wikitext"
	rev, err := m.revision(ctx, title, asOf, withContent)
	if err != nil {
		return nil, err
	}

	body := []byte(rev.content)
	if !withContent {
		if body, err = m.renderedHTML(ctx, title, rev.id); err != nil {
			return nil, err
		}
	}

	raw, err := m.extractor.Extract(title, body)
	if err != nil {
		return nil, &types.FetchError{Title: title, Err: err}
	}
	links := m.filter.Clean(raw)
	m.logger.Debug("links fetched", "title", rev.title, "revid", rev.id, "raw", len(raw), "links", len(links))
	return &types.Page{Title: rev.title, Links: links}, nil
}

// revision loads the latest revision of title at or before asOf.
func (m *MediaWiki) revision(ctx context.Context, title string, asOf time.Time, withContent bool) (revision, error) {
	params := url.Values{
		"action":        {"query"},
		"prop":          {"revisions"},
		"titles":        {title},
		"rvlimit":       {"1"},
		"redirects":     {"1"},
		"format":        {"json"},
		"formatversion": {"2"},
	}
	if withContent {
		params.Set("rvprop", "ids|timestamp|content")
		params.Set("rvslots", "main")
	} else {
		params.Set("rvprop", "ids|timestamp")
	}
	if !asOf.IsZero() {
		params.Set("rvstart", asOf.UTC().Format(time.RFC3339))
	}

	rawURL := m.apiURL + "?" + params.Encode()
	data, err := m.http.Get(ctx, rawURL)
	if err != nil {
		return revision{}, withTitle(err, title)
	}

	var resp revisionsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return revision{}, &types.FetchError{Title: title, URL: rawURL, Err: fmt.Errorf("decode revisions: %w", err)}
	}
	if resp.Error != nil {
		return revision{}, &types.FetchError{Title: title, URL: rawURL, Err: fmt.Errorf("api error %s: %s", resp.Error.Code, resp.Error.Info)}
	}
	for _, r := range resp.Query.Redirects {
		m.logger.Debug("redirect followed", "from", r.From, "to", r.To)
	}
	if len(resp.Query.Pages) == 0 {
		return revision{}, &types.FetchError{Title: title, URL: rawURL, Err: types.ErrNotFound}
	}
	page := resp.Query.Pages[0]
	if page.Missing || page.Invalid {
		return revision{}, &types.FetchError{Title: title, URL: rawURL, Err: types.ErrNotFound}
	}
	if len(page.Revisions) == 0 {
		return revision{}, &types.FetchError{Title: title, URL: rawURL,
			Err: fmt.Errorf("%w: no revision at or before %s", types.ErrNotFound, asOf.Format(time.DateOnly))}
	}
	r := page.Revisions[0]
	canonical := title
	if page.Title != "" {
		canonical = page.Title
	}
	return revision{title: canonical, id: r.RevID, content: r.Slots.Main.Content}, nil
}

// renderedHTML loads the parser output of a specific revision.
func (m *MediaWiki) renderedHTML(ctx context.Context, title string, revID int64) ([]byte, error) {
	params := url.Values{
		"action":        {"parse"},
		"oldid":         {strconv.FormatInt(revID, 10)},
		"prop":          {"text"},
		"format":        {"json"},
		"formatversion": {"2"},
	}
	rawURL := m.apiURL + "?" + params.Encode()
	data, err := m.http.Get(ctx, rawURL)
	if err != nil {
		return nil, withTitle(err, title)
	}

	var resp parseResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &types.FetchError{Title: title, URL: rawURL, Err: fmt.Errorf("decode parse: %w", err)}
	}
	if resp.Error != nil {
		return nil, &types.FetchError{Title: title, URL: rawURL, Err: fmt.Errorf("api error %s: %s", resp.Error.Code, resp.Error.Info)}
	}
	return []byte(resp.Parse.Text), nil
}

// withTitle attaches the article title to a fetch error.
func withTitle(err error, title string) error {
	if fe, ok := err.(*types.FetchError); ok {
		clone := *fe
		clone.Title = title
		return &clone
	}
	return &types.FetchError{Title: title, Err: err}
}
