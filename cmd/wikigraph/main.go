package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/wikigraph/internal/config"
	"github.com/IshaanNene/wikigraph/internal/observability"
)

var (
	cfgFile     string
	verbose     bool
	outputPath  string
	outputType  string
	date        string
	seedsFile   string
	checkpoint  bool
	maxNodes    int
	concurrent  int
	randomSeed  uint64
	exportCSV   bool
	showSpinner bool
	linkSource  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wikigraph",
		Short: "wikigraph — Wikipedia link-graph crawler",
		Long: `wikigraph crawls Wikipedia outward from a seed article, samples outgoing
links with a bias toward the top of each page, and builds a directed link
graph. Every node is then annotated with the change in its pageviews around
the seed's reference date.

Each seed produces two graphs:
  <name>_checkpoint   the crawled graph, saved before annotation
  <name>              the annotated graph

where <name> is the seed title with everything but letters and digits removed.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "output directory for file storage and CSV export")
	rootCmd.PersistentFlags().StringVarP(&outputType, "format", "f", "", "storage backend(s): file, mongodb, postgres (comma-separated)")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wikigraph %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("Crawl:\n")
			fmt.Printf("  Max Nodes:         %d\n", cfg.Crawl.MaxNodes)
			fmt.Printf("  Hop-1 Sample:      %d\n", cfg.Crawl.Hop1SampleSize)
			fmt.Printf("  Indirect Sample:   %d-%d\n", cfg.Crawl.IndirectSampleMin, cfg.Crawl.IndirectSampleMax)
			fmt.Printf("  Min Popularity:    %d\n", cfg.Crawl.MinPopularity)
			fmt.Printf("  Seed Bias:         top %.0f%% of links get %.0f%% of picks\n",
				cfg.Crawl.SeedBias.TopFraction*100, cfg.Crawl.SeedBias.TopShare*100)
			fmt.Printf("  Indirect Bias:     top %.0f%% of links get %.0f%% of picks\n",
				cfg.Crawl.IndirectBias.TopFraction*100, cfg.Crawl.IndirectBias.TopShare*100)
			fmt.Printf("  Concurrency:       %d\n", cfg.Crawl.Concurrency)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Crawl.RequestTimeout)
			fmt.Printf("  Random Seed:       %d\n", cfg.Crawl.RandomSeed)
			fmt.Printf("\nWiki:\n")
			fmt.Printf("  API:               %s\n", cfg.Wiki.APIURL)
			fmt.Printf("  Link Source:       %s (%s)\n", cfg.Wiki.LinkSource, cfg.Wiki.LinkSelector)
			fmt.Printf("  Excluded Prefixes: %d configured\n", len(cfg.Wiki.ExcludedPrefixes))
			fmt.Printf("\nViews:\n")
			fmt.Printf("  Endpoint:          %s\n", cfg.Views.Endpoint)
			fmt.Printf("  Project:           %s (%s, %s)\n", cfg.Views.Project, cfg.Views.Access, cfg.Views.Agent)
			fmt.Printf("  Granularity:       %s\n", cfg.Views.Granularity)
			fmt.Printf("  Window:            -%d/+%d days\n", cfg.Views.DaysBefore, cfg.Views.DaysAfter)
			fmt.Printf("  Concurrency:       %d\n", cfg.Views.Concurrency)
			fmt.Printf("\nHTTP:\n")
			fmt.Printf("  User Agent:        %s\n", cfg.HTTP.UserAgent)
			fmt.Printf("  Rate Limit:        %.1f req/s (burst %d)\n", cfg.HTTP.RateLimit, cfg.HTTP.Burst)
			fmt.Printf("  Max Retries:       %d\n", cfg.HTTP.MaxRetries)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:              %s\n", cfg.Storage.Type)
			fmt.Printf("  Output Path:       %s\n", cfg.Storage.OutputPath)
			fmt.Printf("  Export CSV:        %v\n", cfg.Storage.ExportCSV)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger creates a structured logger.
func setupLogger(cfg *config.Config) *slog.Logger {
	return observability.NewLogger(cfg.Logging, os.Stderr)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if outputType != "" {
		cfg.Storage.Type = strings.ToLower(outputType)
	}
	if maxNodes > 0 {
		cfg.Crawl.MaxNodes = maxNodes
	}
	if concurrent > 0 {
		cfg.Crawl.Concurrency = concurrent
	}
	if randomSeed > 0 {
		cfg.Crawl.RandomSeed = randomSeed
	}
	if exportCSV {
		cfg.Storage.ExportCSV = true
	}
	if linkSource != "" {
		cfg.Wiki.LinkSource = strings.ToLower(linkSource)
	}
}
