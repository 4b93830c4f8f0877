// Package parser extracts article link targets from MediaWiki content, either
// raw wikitext or rendered HTML, and cleans them into article titles.
package parser

import (
	"fmt"
	"log/slog"
)

// LinkExtractor returns the raw internal link targets of a page in the
// order they appear. Targets are not yet filtered or normalised.
type LinkExtractor interface {
	Extract(title string, body []byte) ([]string, error)
}

// NewExtractor picks the extractor for a link source ("wikitext" or "html")
// and, for HTML, a selector engine ("css" or "xpath").
func NewExtractor(source, selector string, logger *slog.Logger) (LinkExtractor, error) {
	switch source {
	case "wikitext":
		return NewWikitextParser(logger), nil
	case "html":
		switch selector {
		case "", "css":
			return NewCSSParser(logger), nil
		case "xpath":
			return NewXPathParser(logger), nil
		}
		return nil, fmt.Errorf("unknown link selector %q", selector)
	default:
		return nil, fmt.Errorf("unknown link source %q", source)
	}
}
