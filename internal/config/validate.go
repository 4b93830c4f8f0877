package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	c := cfg.Crawl
	if c.MaxNodes < 1 {
		return fmt.Errorf("crawl.max_nodes must be >= 1, got %d", c.MaxNodes)
	}
	if c.Hop1SampleSize < 0 {
		return fmt.Errorf("crawl.hop1_sample_size must be >= 0, got %d", c.Hop1SampleSize)
	}
	if c.IndirectSampleMin < 0 || c.IndirectSampleMax < c.IndirectSampleMin {
		return fmt.Errorf("crawl.indirect_sample_min/max must satisfy 0 <= min <= max, got %d/%d",
			c.IndirectSampleMin, c.IndirectSampleMax)
	}
	if c.MinPopularity < 0 {
		return fmt.Errorf("crawl.min_popularity must be >= 0, got %d", c.MinPopularity)
	}
	if err := validateBias("crawl.seed_bias", c.SeedBias); err != nil {
		return err
	}
	if err := validateBias("crawl.indirect_bias", c.IndirectBias); err != nil {
		return err
	}
	if c.Concurrency < 1 || c.Concurrency > 64 {
		return fmt.Errorf("crawl.concurrency must be 1-64, got %d", c.Concurrency)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("crawl.request_timeout must be > 0")
	}

	if err := ValidateURL(cfg.Wiki.APIURL); err != nil {
		return fmt.Errorf("wiki.api_url: %w", err)
	}
	if cfg.Wiki.LinkSource != "wikitext" && cfg.Wiki.LinkSource != "html" {
		return fmt.Errorf("wiki.link_source must be 'wikitext' or 'html', got %q", cfg.Wiki.LinkSource)
	}
	if cfg.Wiki.LinkSelector != "css" && cfg.Wiki.LinkSelector != "xpath" {
		return fmt.Errorf("wiki.link_selector must be 'css' or 'xpath', got %q", cfg.Wiki.LinkSelector)
	}

	if err := ValidateURL(cfg.Views.Endpoint); err != nil {
		return fmt.Errorf("views.endpoint: %w", err)
	}
	if cfg.Views.Granularity != "daily" && cfg.Views.Granularity != "monthly" {
		return fmt.Errorf("views.granularity must be 'daily' or 'monthly', got %q", cfg.Views.Granularity)
	}
	if cfg.Views.DaysBefore < 0 || cfg.Views.DaysAfter < 0 {
		return fmt.Errorf("views.days_before and views.days_after must be >= 0")
	}
	if cfg.Views.Concurrency < 1 {
		return fmt.Errorf("views.concurrency must be >= 1, got %d", cfg.Views.Concurrency)
	}

	if cfg.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0, got %d", cfg.HTTP.MaxRetries)
	}
	if cfg.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit must be >= 0")
	}
	if cfg.HTTP.MaxBodySize <= 0 {
		return fmt.Errorf("http.max_body_size must be > 0")
	}
	if cfg.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent must be set (Wikimedia rejects anonymous clients)")
	}

	for _, typ := range strings.Split(cfg.Storage.Type, ",") {
		switch strings.TrimSpace(typ) {
		case "file":
			if cfg.Storage.OutputPath == "" {
				return fmt.Errorf("storage.output_path must be set for file storage")
			}
		case "mongodb":
			if cfg.Storage.MongoURI == "" {
				return fmt.Errorf("storage.mongo_uri must be set for mongodb storage")
			}
		case "postgres":
			if cfg.Storage.PostgresDSN == "" {
				return fmt.Errorf("storage.postgres_dsn must be set for postgres storage")
			}
		default:
			return fmt.Errorf("storage.type %q is not supported (valid: file, mongodb, postgres)", typ)
		}
	}
	if cfg.Storage.ExportCSV && cfg.Storage.OutputPath == "" {
		return fmt.Errorf("storage.output_path must be set when storage.export_csv is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("logging.format must be 'text', 'json' or 'pretty', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

func validateBias(key string, b BiasConfig) error {
	if b.TopFraction < 0 || b.TopFraction > 1 {
		return fmt.Errorf("%s.top_fraction must be within [0,1], got %v", key, b.TopFraction)
	}
	if b.TopShare < 0 || b.TopShare > 1 {
		return fmt.Errorf("%s.top_share must be within [0,1], got %v", key, b.TopShare)
	}
	return nil
}

// ValidateURL checks if a URL string is a usable http(s) endpoint.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
