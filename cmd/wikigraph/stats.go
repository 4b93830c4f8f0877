package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/wikigraph/internal/graph"
	"github.com/IshaanNene/wikigraph/internal/storage"
)

var (
	statsJSON bool
	statsTop  int
)

// statsCmd creates the "stats" subcommand.
func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <graph...>",
		Short: "Summarise stored graphs",
		Long: `Print structural statistics for stored graphs: size, density, degree,
clustering and pageview deltas.

Each argument is a graph name in the configured store, or a path to a
.graph.json file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runStats,
	}

	cmd.Flags().BoolVar(&statsJSON, "json", false, "print statistics as JSON")
	cmd.Flags().IntVar(&statsTop, "top", 10, "number of most-linked articles to list")

	return cmd
}

type statsOutput struct {
	Name       string        `json:"name"`
	Meta       graph.Meta    `json:"meta"`
	Summary    graph.Summary `json:"summary"`
	MostLinked []string      `json:"most_linked"`
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)
	ctx := cmd.Context()

	var store storage.GraphStore
	for _, arg := range args {
		var g *graph.Graph
		if strings.HasSuffix(arg, ".json") {
			g, err = storage.LoadFile(arg)
		} else {
			if store == nil {
				if store, err = storage.New(ctx, &cfg.Storage, logger); err != nil {
					return fmt.Errorf("create storage: %w", err)
				}
				defer store.Close()
			}
			g, err = store.Load(ctx, arg)
		}
		if err != nil {
			return err
		}

		out := statsOutput{
			Name:       g.Meta.Name,
			Meta:       g.Meta,
			Summary:    graph.Summarize(g),
			MostLinked: graph.TopByInDegree(g, statsTop),
		}
		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			continue
		}
		printStats(g, out)
	}
	return nil
}

func printStats(g *graph.Graph, out statsOutput) {
	s := out.Summary
	fmt.Printf("\n📊 %s\n", out.Name)
	if out.Meta.Seed != "" {
		fmt.Printf("   Seed:        %s (as of %s)\n", out.Meta.Seed, out.Meta.AsOf.Format(time.DateOnly))
	}
	fmt.Printf("   Nodes:       %d (%d isolated)\n", s.Nodes, s.Isolated)
	fmt.Printf("   Edges:       %d (density %.4f)\n", s.Edges, s.Density)
	fmt.Printf("   Out-degree:  mean %.2f\n", s.MeanOutDegree)
	fmt.Printf("   Clustering:  mean %.4f\n", s.MeanClustering)
	fmt.Printf("   Hops:        %v nodes at hop 0..%d\n", s.NodesPerHop, s.MaxHop)
	fmt.Printf("   Annotated:   %d (%d without views), mean delta %.3f\n", s.Annotated, s.NoViews, s.MeanDelta)
	if len(out.MostLinked) > 0 {
		fmt.Printf("   Most linked:\n")
		for i, title := range out.MostLinked {
			fmt.Printf("     %2d. %s (%d in-links)\n", i+1, title, g.InDegree(title))
		}
	}
}
