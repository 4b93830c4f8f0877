package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/wikigraph/internal/config"
	"github.com/IshaanNene/wikigraph/internal/types"
	"github.com/IshaanNene/wikigraph/pkg/wikigraph"
)

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [article...]",
		Short: "Crawl and annotate the link graph around seed articles",
		Long: `Crawl the link graph around each seed article and annotate it with pageview deltas.

Seeds come from the arguments (all sharing --date), from a YAML file given
with --seeds, or from the built-in list when neither is given.`,
		Example: `  wikigraph crawl "Stan Lee" --date 2018-11-12
  wikigraph crawl --seeds seeds.yaml --export-csv
  wikigraph crawl "Stan Lee" --date 2018-11-12 --checkpoint`,
		RunE: runCrawl,
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "reference date for article arguments (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&seedsFile, "seeds", "s", "", "YAML file listing seeds and dates")
	cmd.Flags().BoolVar(&checkpoint, "checkpoint", false, "annotate the saved checkpoint graph instead of crawling")
	cmd.Flags().IntVarP(&maxNodes, "max-nodes", "m", 0, "maximum articles per graph (0 = config default)")
	cmd.Flags().IntVarP(&concurrent, "concurrency", "n", 0, "articles fetched ahead of the crawl (0 = config default)")
	cmd.Flags().Uint64Var(&randomSeed, "random-seed", 0, "sampling seed for reproducible crawls (0 = random)")
	cmd.Flags().BoolVar(&exportCSV, "export-csv", false, "also write node and edge CSV tables")
	cmd.Flags().StringVar(&linkSource, "link-source", "", "where links are read from: wikitext, html")
	cmd.Flags().BoolVarP(&showSpinner, "progress", "p", false, "show a progress spinner while crawling")

	return cmd
}

// resolveSeeds picks seeds from the arguments, the seeds file or the
// built-in list, in that order.
func resolveSeeds(args []string) ([]types.Seed, error) {
	if len(args) > 0 {
		if seedsFile != "" {
			return nil, errors.New("give seed articles as arguments or with --seeds, not both")
		}
		if date == "" {
			return nil, errors.New("--date is required when seed articles are given as arguments")
		}
		d, err := config.ParseDate(date)
		if err != nil {
			return nil, err
		}
		seeds := make([]types.Seed, len(args))
		for i, a := range args {
			seeds[i] = types.Seed{Article: a, Date: d}
		}
		return seeds, nil
	}
	if seedsFile != "" {
		return config.LoadSeeds(seedsFile)
	}
	return config.DefaultSeeds(), nil
}

// runCrawl executes the crawl command.
func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	seeds, err := resolveSeeds(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []wikigraph.Option{wikigraph.WithConfig(cfg), wikigraph.WithLogger(logger)}
	if checkpoint {
		opts = append(opts, wikigraph.WithResume())
	}
	var spin *spinner.Spinner
	if showSpinner && !checkpoint {
		spin = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		opts = append(opts, wikigraph.OnAdmit(func(title string, hop, admitted int) {
			spin.Lock()
			spin.Suffix = fmt.Sprintf(" %d/%d  hop %d  %s", admitted, cfg.Crawl.MaxNodes, hop, title)
			spin.Unlock()
		}))
	}

	client, err := wikigraph.New(ctx, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info("starting crawl",
		"seeds", len(seeds),
		"max_nodes", cfg.Crawl.MaxNodes,
		"concurrency", cfg.Crawl.Concurrency,
		"storage", client.StoreName(),
		"resume", checkpoint,
	)

	if spin != nil {
		spin.Start()
	}
	reports, runErr := client.Run(ctx, seeds)
	if spin != nil {
		spin.Stop()
	}

	for _, r := range reports {
		printReport(r)
	}

	if runErr != nil {
		if errors.Is(runErr, types.ErrEmptyGraph) {
			fmt.Println("\n💡 A seed produced no graph: every article was a stub or failed to fetch.")
			fmt.Println("   Check the title spelling, or lower crawl.min_popularity.")
		}
		if errors.Is(runErr, types.ErrNotFound) && checkpoint {
			fmt.Println("\n💡 No checkpoint found. Run without --checkpoint first.")
		}
		return runErr
	}
	return nil
}

func printReport(r *wikigraph.Report) {
	s := r.Summary
	mode := "crawled"
	if r.Resumed {
		mode = "resumed from checkpoint"
	}
	fmt.Printf("\n✅ %s (%s) %s in %s\n", r.Seed.Article, r.Seed.Date.Format(time.DateOnly), mode, r.Duration.Round(time.Millisecond))
	fmt.Printf("   Graph:     %d nodes, %d edges, max hop %d\n", s.Nodes, s.Edges, s.MaxHop)
	fmt.Printf("   Views:     %s to %s, %d annotated, %d without views\n",
		r.ViewsStart.Format(time.DateOnly), r.ViewsEnd.Format(time.DateOnly), s.Annotated, len(r.Excluded))
	fmt.Printf("   Delta:     mean %.3f\n", s.MeanDelta)
	if r.Exhausted {
		fmt.Printf("   Note:      frontier ran dry before the node budget\n")
	}
	fmt.Printf("   Run ID:    %s\n", r.RunID)
	for _, out := range r.Outputs {
		fmt.Printf("   Output:    %s\n", out)
	}
}
