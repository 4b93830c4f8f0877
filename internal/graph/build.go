package graph

import "github.com/IshaanNene/wikigraph/internal/types"

// Build turns a crawl's article map into a graph: one node per admitted
// article, and an edge u -> v whenever v is among u's links, v was admitted
// and v differs from u. Links naming a redirect count for the article it
// resolves to; links to articles outside the map are dropped.
func Build(links *types.ArticleLinks) *Graph {
	g := New()
	titles := links.Titles()
	for _, t := range titles {
		a := links.Get(t)
		g.AddNode(Node{Title: a.Title, Hop: a.Hop, LinkCount: len(a.Links)})
	}
	for _, t := range titles {
		for _, link := range links.Get(t).Links {
			target := links.Resolve(link)
			if target == t || !links.Has(target) {
				continue
			}
			// Both endpoints exist and differ, so AddEdge cannot fail.
			_ = g.AddEdge(t, target)
		}
	}
	return g
}
