package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/IshaanNene/wikigraph/internal/config"
	"github.com/IshaanNene/wikigraph/internal/types"
)

// Pageviews reads per-article view counts from the Wikimedia REST API. It
// implements views.SeriesFetcher.
type Pageviews struct {
	http     Fetcher
	endpoint string
	project  string
	access   string
	agent    string
	logger   *slog.Logger
}

// NewPageviews creates a pageviews client.
func NewPageviews(http Fetcher, cfg *config.ViewsConfig, logger *slog.Logger) *Pageviews {
	return &Pageviews{
		http:     http,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		project:  cfg.Project,
		access:   cfg.Access,
		agent:    cfg.Agent,
		logger:   logger.With("component", "pageviews"),
	}
}

type pageviewsResponse struct {
	Items []struct {
		Timestamp string `json:"timestamp"`
		Views     int64  `json:"views"`
	} `json:"items"`
}

// URL builds the per-article request URL:
// {endpoint}/per-article/{project}/{access}/{agent}/{article}/{granularity}/{start}/{end}
func (p *Pageviews) URL(title string, start, end time.Time, granularity types.Granularity) string {
	article := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	return strings.Join([]string{
		p.endpoint, "per-article", p.project, p.access, p.agent, article,
		string(granularity), start.Format("20060102"), end.Format("20060102"),
	}, "/")
}

// FetchSeries implements views.SeriesFetcher. The series is ordered by time.
func (p *Pageviews) FetchSeries(ctx context.Context, title string, start, end time.Time, granularity types.Granularity) (types.ViewSeries, error) {
	if end.Before(start) {
		return nil, types.InvalidArgument("fetch pageviews", "window end %s before start %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	rawURL := p.URL(title, start, end, granularity)
	data, err := p.http.Get(ctx, rawURL)
	if err != nil {
		return nil, withTitle(err, title)
	}

	var resp pageviewsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &types.FetchError{Title: title, URL: rawURL, Err: fmt.Errorf("decode pageviews: %w", err)}
	}

	series := make(types.ViewSeries, 0, len(resp.Items))
	for _, item := range resp.Items {
		ts, err := time.Parse("2006010215", item.Timestamp)
		if err != nil {
			return nil, &types.FetchError{Title: title, URL: rawURL, Err: fmt.Errorf("bad timestamp %q: %w", item.Timestamp, err)}
		}
		series = append(series, types.ViewPoint{Views: item.Views, Timestamp: ts})
	}
	slices.SortStableFunc(series, func(a, b types.ViewPoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	p.logger.Debug("pageviews fetched", "title", title, "points", len(series))
	return series, nil
}
