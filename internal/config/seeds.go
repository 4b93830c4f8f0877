package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/wikigraph/internal/types"
)

// seedFile is the on-disk layout of a seeds file:
//
//	seeds:
//	  - article: Stan Lee
//	    date: 2018-11-12
type seedFile struct {
	Seeds []seedEntry `yaml:"seeds"`
}

type seedEntry struct {
	Article string `yaml:"article"`
	Date    string `yaml:"date"`
}

// DefaultSeeds returns the built-in seed list used when none is given.
func DefaultSeeds() []types.Seed {
	return []types.Seed{
		{Article: "Stan Lee", Date: time.Date(2018, 11, 12, 0, 0, 0, 0, time.UTC)},
		{Article: "Stephen Hawking", Date: time.Date(2018, 3, 14, 0, 0, 0, 0, time.UTC)},
		{Article: "Alan Rickman", Date: time.Date(2016, 1, 14, 0, 0, 0, 0, time.UTC)},
	}
}

// LoadSeeds reads a YAML seeds file.
func LoadSeeds(path string) ([]types.Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seeds file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seeds file %s: %w", path, err)
	}
	if len(f.Seeds) == 0 {
		return nil, fmt.Errorf("seeds file %s lists no seeds", path)
	}

	seeds := make([]types.Seed, 0, len(f.Seeds))
	for i, e := range f.Seeds {
		article := strings.TrimSpace(e.Article)
		if article == "" {
			return nil, fmt.Errorf("seeds file %s: entry %d has no article", path, i)
		}
		date, err := ParseDate(e.Date)
		if err != nil {
			return nil, fmt.Errorf("seeds file %s: entry %d (%s): %w", path, i, article, err)
		}
		seeds = append(seeds, types.Seed{Article: article, Date: date})
	}
	return seeds, nil
}

// ParseDate accepts YYYY-MM-DD or YYYYMMDD and returns midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.DateOnly, "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
}
