package parser

import (
	"log/slog"
	"regexp"
)

// wikilinkPattern matches [[Target]] and [[Target|label]]. Links nested in
// file captions are matched on their own because the caption's brackets stop
// the outer match.
var wikilinkPattern = regexp.MustCompile(`\[\[([^\[\]|\n]+)(?:\|[^\[\]]*)?\]\]`)

// WikitextParser extracts wikilinks from raw wikitext.
type WikitextParser struct {
	logger *slog.Logger
}

// NewWikitextParser creates a new wikitext link parser.
func NewWikitextParser(logger *slog.Logger) *WikitextParser {
	return &WikitextParser{
		logger: logger.With("component", "wikitext_parser"),
	}
}

// Extract implements LinkExtractor.
func (p *WikitextParser) Extract(title string, body []byte) ([]string, error) {
	matches := wikilinkPattern.FindAllSubmatch(body, -1)
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		links = append(links, string(m[1]))
	}
	p.logger.Debug("wikilinks extracted", "title", title, "count", len(links))
	return links, nil
}
