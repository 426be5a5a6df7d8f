// Package rollup contracts file graphs into folder graphs for display.
//
// Every function here is a pure projection over its input graph. Callers
// re-run it against the original flat graph whenever the expansion boundary
// changes; projecting an already rolled-up graph again gives different
// results because contraction does not compose.
package rollup

import (
	"strings"

	"callgraph/internal/graph"
)

// topLevelSegments is how many path segments survive outside any expanded
// folder.
const topLevelSegments = 2

// Name returns the group a file display name belongs to. expanded must be
// ordered longest first so the deepest matching folder wins.
func Name(displayName string, expanded []string) string {
	parts := strings.Split(displayName, "/")
	for _, folder := range expanded {
		folder = strings.TrimSuffix(folder, "/")
		if folder == "" || !under(displayName, folder) {
			continue
		}
		return truncate(parts, len(strings.Split(folder, "/"))+1)
	}
	return truncate(parts, topLevelSegments)
}

func truncate(parts []string, n int) string {
	if n > len(parts) {
		n = len(parts)
	}
	return strings.Join(parts[:n], "/")
}

// under reports whether name is folder or lies below it.
func under(name, folder string) bool {
	return name == folder || strings.HasPrefix(name, folder+"/")
}

// Folders contracts the file nodes of g into folders. Files below an
// expanded folder stay visible one level deeper than the folder; everything
// else collapses into its top-level folder. Parallel edges are merged, each
// extra edge adding one to the weight, and self-loops are dropped.
//
// Graphs whose nodes are not files are returned unchanged.
func Folders(g *graph.Graph, expanded []string) *graph.Graph {
	if g == nil || len(g.Nodes) == 0 || g.Nodes[0].Kind != graph.KindFile {
		return g
	}
	expanded = NewExpandedSet(expanded...).Folders()

	out := &graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}}
	byID := make(map[string]graph.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}

	rolled := make(map[string]int)
	rollupNode := func(n graph.Node) graph.Node {
		name := Name(n.DisplayName, expanded)
		if i, ok := rolled[name]; ok {
			return out.Nodes[i]
		}
		node := n
		node.Key = name
		if name != n.DisplayName {
			node.Kind = graph.KindFolder
			node.DisplayName = name + "/"
			node.FilePath = name
			node.Line, node.Column = 0, 0
		}
		rolled[name] = len(out.Nodes)
		out.Nodes = append(out.Nodes, node)
		return node
	}

	for _, n := range g.Nodes {
		rollupNode(n)
	}

	edgeIndex := make(map[string]int)
	for _, e := range g.Edges {
		srcLeaf, okSrc := byID[e.Source]
		dstLeaf, okDst := byID[e.Target]
		if !okSrc || !okDst {
			continue
		}
		src, dst := rollupNode(srcLeaf), rollupNode(dstLeaf)
		if src.Key == dst.Key {
			continue
		}
		key := src.Key + " -> " + dst.Key
		if i, ok := edgeIndex[key]; ok {
			out.Edges[i].Weight++
			continue
		}
		edge := e
		edge.Key = key
		edge.Source = src.ID
		edge.Target = dst.ID
		edge.Snippets = append([]graph.Snippet{}, e.Snippets...)
		edgeIndex[key] = len(out.Edges)
		out.Edges = append(out.Edges, edge)
	}
	return out
}
