package parser

import (
	"bytes"
	"log/slog"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/wikigraph/internal/types"
)

// ContentLinkXPath selects article links in rendered page content.
const ContentLinkXPath = `//div[contains(concat(' ', normalize-space(@class), ' '), ' mw-parser-output ')]//a[starts-with(@href, '/wiki/')]`

// XPathParser extracts article links from rendered HTML using XPath.
type XPathParser struct {
	logger *slog.Logger
	expr   string
}

// NewXPathParser creates a new XPath parser.
func NewXPathParser(logger *slog.Logger) *XPathParser {
	return &XPathParser{
		logger: logger.With("component", "xpath_parser"),
		expr:   ContentLinkXPath,
	}
}

// Extract implements LinkExtractor.
func (p *XPathParser) Extract(title string, body []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &types.ParseError{Title: title, Err: err}
	}

	nodes, err := htmlquery.QueryAll(doc, p.expr)
	if err != nil {
		p.logger.Warn("invalid xpath", "expr", p.expr, "error", err)
		return nil, &types.ParseError{Title: title, Err: err}
	}

	links := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if target, ok := titleFromHref(htmlquery.SelectAttr(node, "href")); ok {
			links = append(links, target)
		}
	}

	p.logger.Debug("html links extracted", "title", title, "count", len(links))
	return links, nil
}
