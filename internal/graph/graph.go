// Package graph holds the directed article link graph produced by a crawl
// and annotated with pageview deltas.
package graph

import (
	"fmt"
	"sync"
	"time"

	"github.com/IshaanNene/wikigraph/internal/types"
)

// Node is one admitted article.
type Node struct {
	Title     string   `json:"title"              bson:"title"`
	Hop       int      `json:"hop"                bson:"hop"`
	LinkCount int      `json:"link_count"         bson:"link_count"`
	Delta     *float64 `json:"delta,omitempty"    bson:"delta,omitempty"`
	NoViews   bool     `json:"no_views,omitempty" bson:"no_views,omitempty"`
}

// HasDelta reports whether the node has been annotated.
func (n Node) HasDelta() bool { return n.Delta != nil }

// Edge is a directed link between two admitted articles.
type Edge struct {
	From string `json:"from" bson:"from"`
	To   string `json:"to"   bson:"to"`
}

// Meta describes the run that produced a graph.
type Meta struct {
	Name       string    `json:"name"                  bson:"_id"`
	Seed       string    `json:"seed"                  bson:"seed"`
	AsOf       time.Time `json:"as_of"                 bson:"as_of"`
	ViewsStart time.Time `json:"views_start,omitzero"  bson:"views_start,omitempty"`
	ViewsEnd   time.Time `json:"views_end,omitzero"    bson:"views_end,omitempty"`
	RunID      string    `json:"run_id"                bson:"run_id"`
	CreatedAt  time.Time `json:"created_at"            bson:"created_at"`
}

// Graph is a concurrency-safe directed graph without self-loops or
// multi-edges. Nodes keep their insertion order.
type Graph struct {
	Meta Meta

	mu      sync.RWMutex
	order   []string
	nodes   map[string]*Node
	edges   []Edge
	edgeSet map[Edge]struct{}
	out     map[string][]string
	in      map[string][]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edgeSet: make(map[Edge]struct{}),
		out:     make(map[string][]string),
		in:      make(map[string][]string),
	}
}

// AddNode adds a node, or replaces the attributes of an existing one while
// keeping its position.
func (g *Graph) AddNode(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[n.Title]; !ok {
		g.order = append(g.order, n.Title)
	}
	g.nodes[n.Title] = &n
}

// AddEdge adds a directed edge. Both endpoints must exist and differ.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if from == to {
		return types.InvalidArgument("add edge", "self-loop on %q", from)
	}
	for _, t := range [2]string{from, to} {
		if _, ok := g.nodes[t]; !ok {
			return fmt.Errorf("add edge %q -> %q: %w: %q", from, to, types.ErrUnknownNode, t)
		}
	}
	e := Edge{From: from, To: to}
	if _, exists := g.edgeSet[e]; exists {
		return nil
	}
	g.edgeSet[e] = struct{}{}
	g.edges = append(g.edges, e)
	g.out[from] = append(g.out[from], to)
	g.in[to] = append(g.in[to], from)
	return nil
}

// HasNode reports whether title is a node.
func (g *Graph) HasNode(title string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[title]
	return ok
}

// HasEdge reports whether the edge from -> to exists.
func (g *Graph) HasEdge(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edgeSet[Edge{From: from, To: to}]
	return ok
}

// Node returns a copy of the node for title.
func (g *Graph) Node(title string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[title]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.order))
	for _, t := range g.order {
		out = append(out, *g.nodes[t])
	}
	return out
}

// Titles returns node titles in insertion order.
func (g *Graph) Titles() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Edges returns a copy of the edge list in insertion order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// Successors returns the titles title links to.
func (g *Graph) Successors(title string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.out[title]...)
}

// Predecessors returns the titles linking to title.
func (g *Graph) Predecessors(title string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.in[title]...)
}

func (g *Graph) OutDegree(title string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.out[title])
}

func (g *Graph) InDegree(title string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.in[title])
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// SetDelta attaches a pageview delta to a node. A delta is set at most once.
func (g *Graph) SetDelta(title string, delta float64, noViews bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[title]
	if !ok {
		return fmt.Errorf("set delta: %w: %q", types.ErrUnknownNode, title)
	}
	if n.Delta != nil {
		return fmt.Errorf("set delta on %q: %w", title, types.ErrDeltaSet)
	}
	n.Delta = &delta
	n.NoViews = noViews
	return nil
}

// Deltas returns the delta of every annotated node.
func (g *Graph) Deltas() map[string]float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]float64, len(g.nodes))
	for t, n := range g.nodes {
		if n.Delta != nil {
			out[t] = *n.Delta
		}
	}
	return out
}
