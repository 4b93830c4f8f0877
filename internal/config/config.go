package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for wikigraph.
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl"   yaml:"crawl"`
	Wiki    WikiConfig    `mapstructure:"wiki"    yaml:"wiki"`
	Views   ViewsConfig   `mapstructure:"views"   yaml:"views"`
	HTTP    HTTPConfig    `mapstructure:"http"    yaml:"http"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// BiasConfig is the two-tier link sampling bias.
type BiasConfig struct {
	TopFraction float64 `mapstructure:"top_fraction" yaml:"top_fraction"`
	TopShare    float64 `mapstructure:"top_share"    yaml:"top_share"`
}

// CrawlConfig controls the graph crawl.
type CrawlConfig struct {
	MaxNodes          int           `mapstructure:"max_nodes"           yaml:"max_nodes"`
	Hop1SampleSize    int           `mapstructure:"hop1_sample_size"    yaml:"hop1_sample_size"`
	IndirectSampleMin int           `mapstructure:"indirect_sample_min" yaml:"indirect_sample_min"`
	IndirectSampleMax int           `mapstructure:"indirect_sample_max" yaml:"indirect_sample_max"`
	MinPopularity     int           `mapstructure:"min_popularity"      yaml:"min_popularity"`
	SeedBias          BiasConfig    `mapstructure:"seed_bias"           yaml:"seed_bias"`
	IndirectBias      BiasConfig    `mapstructure:"indirect_bias"       yaml:"indirect_bias"`
	Concurrency       int           `mapstructure:"concurrency"         yaml:"concurrency"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"     yaml:"request_timeout"`
	RandomSeed        uint64        `mapstructure:"random_seed"         yaml:"random_seed"`
}

// WikiConfig controls where and how article links are read.
type WikiConfig struct {
	APIURL           string   `mapstructure:"api_url"           yaml:"api_url"`
	LinkSource       string   `mapstructure:"link_source"       yaml:"link_source"`   // wikitext, html
	LinkSelector     string   `mapstructure:"link_selector"     yaml:"link_selector"` // css, xpath
	ExcludedPrefixes []string `mapstructure:"excluded_prefixes" yaml:"excluded_prefixes"`
}

// ViewsConfig controls pageview retrieval and the annotation window.
type ViewsConfig struct {
	Endpoint    string `mapstructure:"endpoint"    yaml:"endpoint"`
	Project     string `mapstructure:"project"     yaml:"project"`
	Access      string `mapstructure:"access"      yaml:"access"`
	Agent       string `mapstructure:"agent"       yaml:"agent"`
	Granularity string `mapstructure:"granularity" yaml:"granularity"`
	DaysBefore  int    `mapstructure:"days_before" yaml:"days_before"`
	DaysAfter   int    `mapstructure:"days_after"  yaml:"days_after"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
}

// HTTPConfig controls the shared Wikimedia HTTP client.
type HTTPConfig struct {
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	MaxRetries      int           `mapstructure:"max_retries"       yaml:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"       yaml:"retry_delay"`
	RateLimit       float64       `mapstructure:"rate_limit"        yaml:"rate_limit"` // requests per second
	Burst           int           `mapstructure:"burst"             yaml:"burst"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// StorageConfig controls where graphs are written.
type StorageConfig struct {
	Type          string `mapstructure:"type"           yaml:"type"` // file, mongodb, postgres; comma-separated fans out
	OutputPath    string `mapstructure:"output_path"    yaml:"output_path"`
	ExportCSV     bool   `mapstructure:"export_csv"     yaml:"export_csv"`
	MongoURI      string `mapstructure:"mongo_uri"      yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`
	PostgresDSN   string `mapstructure:"postgres_dsn"   yaml:"postgres_dsn"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text, json, pretty
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultExcludedPrefixes lists link prefixes that never name an article:
// non-article namespaces and interwiki targets.
var DefaultExcludedPrefixes = []string{
	"Category:", "File:", "Image:", "Media:", "Template:", "Template talk:",
	"Help:", "Wikipedia:", "WP:", "Portal:", "Special:", "Talk:", "User:",
	"User talk:", "Draft:", "Module:", "MediaWiki:", "TimedText:", "Book:",
	"wikt:", "wiktionary:", "commons:", "meta:", "s:", "q:", "n:", "b:", "v:", "d:",
	"wikisource:", "wikiquote:", "wikinews:", "wikibooks:", "wikiversity:", "wikidata:",
	"species:", "mw:", "phab:", ":",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			MaxNodes:          500,
			Hop1SampleSize:    175,
			IndirectSampleMin: 10,
			IndirectSampleMax: 25,
			MinPopularity:     30,
			SeedBias:          BiasConfig{TopFraction: 0.1, TopShare: 0.5},
			IndirectBias:      BiasConfig{TopFraction: 0.4, TopShare: 0.5},
			Concurrency:       4,
			RequestTimeout:    30 * time.Second,
		},
		Wiki: WikiConfig{
			APIURL:           "https://en.wikipedia.org/w/api.php",
			LinkSource:       "wikitext",
			LinkSelector:     "css",
			ExcludedPrefixes: DefaultExcludedPrefixes,
		},
		Views: ViewsConfig{
			Endpoint:    "https://wikimedia.org/api/rest_v1/metrics/pageviews",
			Project:     "en.wikipedia",
			Access:      "all-access",
			Agent:       "user",
			Granularity: "daily",
			DaysBefore:  1,
			DaysAfter:   0,
			Concurrency: 8,
		},
		HTTP: HTTPConfig{
			UserAgent:       "wikigraph/" + Version + " (https://github.com/IshaanNene/wikigraph)",
			MaxRetries:      3,
			RetryDelay:      2 * time.Second,
			RateLimit:       20,
			Burst:           10,
			MaxBodySize:     20 * 1024 * 1024, // 20MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Storage: StorageConfig{
			Type:          "file",
			OutputPath:    "./output",
			MongoDatabase: "wikigraph",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
