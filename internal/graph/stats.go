package graph

import "slices"

// Summary is a structural overview of a graph.
type Summary struct {
	Nodes          int     `json:"nodes"`
	Edges          int     `json:"edges"`
	Density        float64 `json:"density"`
	MeanOutDegree  float64 `json:"mean_out_degree"`
	MaxInDegree    int     `json:"max_in_degree"`
	MostLinked     string  `json:"most_linked"`
	Isolated       int     `json:"isolated"`
	MeanClustering float64 `json:"mean_clustering"`
	Annotated      int     `json:"annotated"`
	NoViews        int     `json:"no_views"`
	MeanDelta      float64 `json:"mean_delta"`
	MaxHop         int     `json:"max_hop"`
	NodesPerHop    []int   `json:"nodes_per_hop"`
}

// Summarize computes a Summary of g.
func Summarize(g *Graph) Summary {
	nodes := g.Nodes()
	s := Summary{Nodes: len(nodes), Edges: g.EdgeCount()}
	if s.Nodes == 0 {
		return s
	}
	if s.Nodes > 1 {
		s.Density = float64(s.Edges) / float64(s.Nodes*(s.Nodes-1))
	}
	s.MeanOutDegree = float64(s.Edges) / float64(s.Nodes)

	adj := undirected(g)
	var deltaSum, clusteringSum float64
	for _, n := range nodes {
		if in := g.InDegree(n.Title); in > s.MaxInDegree {
			s.MaxInDegree = in
			s.MostLinked = n.Title
		}
		if len(adj[n.Title]) == 0 {
			s.Isolated++
		}
		clusteringSum += clustering(adj, n.Title)

		if n.Delta != nil {
			s.Annotated++
			deltaSum += *n.Delta
		}
		if n.NoViews {
			s.NoViews++
		}
		if n.Hop > s.MaxHop {
			s.MaxHop = n.Hop
		}
	}
	s.MeanClustering = clusteringSum / float64(s.Nodes)
	if s.Annotated > 0 {
		s.MeanDelta = deltaSum / float64(s.Annotated)
	}

	s.NodesPerHop = make([]int, s.MaxHop+1)
	for _, n := range nodes {
		s.NodesPerHop[n.Hop]++
	}
	return s
}

// ClusteringCoefficient returns the local clustering coefficient of title on
// the undirected version of g: the fraction of pairs of its neighbours that
// are themselves connected. Nodes with fewer than two neighbours score 0.
func ClusteringCoefficient(g *Graph, title string) float64 {
	return clustering(undirected(g), title)
}

// AverageClustering returns the mean local clustering coefficient.
func AverageClustering(g *Graph) float64 {
	titles := g.Titles()
	if len(titles) == 0 {
		return 0
	}
	adj := undirected(g)
	var sum float64
	for _, t := range titles {
		sum += clustering(adj, t)
	}
	return sum / float64(len(titles))
}

// TopByInDegree returns up to k titles ordered by decreasing in-degree,
// ties broken by insertion order.
func TopByInDegree(g *Graph, k int) []string {
	titles := g.Titles()
	pos := make(map[string]int, len(titles))
	for i, t := range titles {
		pos[t] = i
	}
	slices.SortStableFunc(titles, func(a, b string) int {
		if d := g.InDegree(b) - g.InDegree(a); d != 0 {
			return d
		}
		return pos[a] - pos[b]
	})
	if k < len(titles) {
		titles = titles[:k]
	}
	return titles
}

func undirected(g *Graph) map[string]map[string]struct{} {
	adj := make(map[string]map[string]struct{}, g.NodeCount())
	for _, t := range g.Titles() {
		adj[t] = make(map[string]struct{})
	}
	for t, neighbours := range adj {
		for _, s := range g.Successors(t) {
			neighbours[s] = struct{}{}
		}
		for _, p := range g.Predecessors(t) {
			neighbours[p] = struct{}{}
		}
	}
	return adj
}

func clustering(adj map[string]map[string]struct{}, title string) float64 {
	neighbours := adj[title]
	k := len(neighbours)
	if k < 2 {
		return 0
	}
	links := 0
	for u := range neighbours {
		for v := range neighbours {
			if u < v {
				if _, ok := adj[u][v]; ok {
					links++
				}
			}
		}
	}
	return float64(links) / (float64(k*(k-1)) / 2)
}
