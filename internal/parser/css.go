package parser

import (
	"bytes"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/wikigraph/internal/types"
)

// ContentLinkSelector selects article links in rendered page content.
const ContentLinkSelector = `.mw-parser-output a[href^="/wiki/"]`

// CSSParser extracts article links from rendered HTML using CSS selectors
// via goquery.
type CSSParser struct {
	logger   *slog.Logger
	selector string
}

// NewCSSParser creates a new CSS selector parser.
func NewCSSParser(logger *slog.Logger) *CSSParser {
	return &CSSParser{
		logger:   logger.With("component", "css_parser"),
		selector: ContentLinkSelector,
	}
}

// Extract implements LinkExtractor.
func (p *CSSParser) Extract(title string, body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &types.ParseError{Title: title, Err: err}
	}

	var links []string
	doc.Find(p.selector).Each(func(i int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists {
			return
		}
		if target, ok := titleFromHref(href); ok {
			links = append(links, target)
		}
	})

	p.logger.Debug("html links extracted", "title", title, "count", len(links))
	return links, nil
}

// titleFromHref turns "/wiki/Stan_Lee" into "Stan_Lee". Fragments are kept
// so that section links are recognised and dropped by the filter.
func titleFromHref(href string) (string, bool) {
	href = strings.TrimSpace(href)
	rest, ok := strings.CutPrefix(href, "/wiki/")
	if !ok || rest == "" {
		return "", false
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	decoded, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return decoded, true
}
