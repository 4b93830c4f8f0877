package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
// CLI flags are applied by the caller after Load returns.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	// WIKIGRAPH_CRAWL_MAX_NODES=100 overrides crawl.max_nodes
	v.SetEnvPrefix("WIKIGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("wikigraph")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".wikigraph"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so that env overrides
// resolve for every key.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawl.max_nodes", cfg.Crawl.MaxNodes)
	v.SetDefault("crawl.hop1_sample_size", cfg.Crawl.Hop1SampleSize)
	v.SetDefault("crawl.indirect_sample_min", cfg.Crawl.IndirectSampleMin)
	v.SetDefault("crawl.indirect_sample_max", cfg.Crawl.IndirectSampleMax)
	v.SetDefault("crawl.min_popularity", cfg.Crawl.MinPopularity)
	v.SetDefault("crawl.seed_bias.top_fraction", cfg.Crawl.SeedBias.TopFraction)
	v.SetDefault("crawl.seed_bias.top_share", cfg.Crawl.SeedBias.TopShare)
	v.SetDefault("crawl.indirect_bias.top_fraction", cfg.Crawl.IndirectBias.TopFraction)
	v.SetDefault("crawl.indirect_bias.top_share", cfg.Crawl.IndirectBias.TopShare)
	v.SetDefault("crawl.concurrency", cfg.Crawl.Concurrency)
	v.SetDefault("crawl.request_timeout", cfg.Crawl.RequestTimeout)
	v.SetDefault("crawl.random_seed", cfg.Crawl.RandomSeed)

	v.SetDefault("wiki.api_url", cfg.Wiki.APIURL)
	v.SetDefault("wiki.link_source", cfg.Wiki.LinkSource)
	v.SetDefault("wiki.link_selector", cfg.Wiki.LinkSelector)
	v.SetDefault("wiki.excluded_prefixes", cfg.Wiki.ExcludedPrefixes)

	v.SetDefault("views.endpoint", cfg.Views.Endpoint)
	v.SetDefault("views.project", cfg.Views.Project)
	v.SetDefault("views.access", cfg.Views.Access)
	v.SetDefault("views.agent", cfg.Views.Agent)
	v.SetDefault("views.granularity", cfg.Views.Granularity)
	v.SetDefault("views.days_before", cfg.Views.DaysBefore)
	v.SetDefault("views.days_after", cfg.Views.DaysAfter)
	v.SetDefault("views.concurrency", cfg.Views.Concurrency)

	v.SetDefault("http.user_agent", cfg.HTTP.UserAgent)
	v.SetDefault("http.max_retries", cfg.HTTP.MaxRetries)
	v.SetDefault("http.retry_delay", cfg.HTTP.RetryDelay)
	v.SetDefault("http.rate_limit", cfg.HTTP.RateLimit)
	v.SetDefault("http.burst", cfg.HTTP.Burst)
	v.SetDefault("http.max_body_size", cfg.HTTP.MaxBodySize)
	v.SetDefault("http.idle_conn_timeout", cfg.HTTP.IdleConnTimeout)
	v.SetDefault("http.max_idle_conns", cfg.HTTP.MaxIdleConns)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.export_csv", cfg.Storage.ExportCSV)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.postgres_dsn", cfg.Storage.PostgresDSN)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
