package parser

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Filter drops link targets that do not name an article and normalises the
// rest into titles.
type Filter struct {
	prefixes []string // lower-cased
}

// NewFilter creates a Filter excluding targets that start with any of
// prefixes, compared case-insensitively.
func NewFilter(prefixes []string) *Filter {
	lower := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lower = append(lower, p)
		}
	}
	return &Filter{prefixes: lower}
}

// Allow reports whether a normalised title is an article link. Section
// anchors are rejected wherever they appear.
func (f *Filter) Allow(title string) bool {
	if title == "" || strings.ContainsRune(title, '#') {
		return false
	}
	lower := strings.ToLower(title)
	for _, p := range f.prefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	return true
}

// Clean normalises raw targets, drops excluded ones and removes duplicates
// while keeping first-appearance order.
func (f *Filter) Clean(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t := NormalizeTitle(r)
		if !f.Allow(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// NormalizeTitle applies MediaWiki title rules: entities decoded, underscores
// read as spaces, whitespace collapsed, first letter upper-cased.
func NormalizeTitle(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	if unicode.IsLower(r) {
		return string(unicode.ToUpper(r)) + s[size:]
	}
	return s
}
