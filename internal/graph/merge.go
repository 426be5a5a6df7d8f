package graph

// Merge combines two graphs. Nodes are unioned by id, with b winning on a
// collision. Edges are unioned by id; an edge of b whose id already exists
// bumps the stored weight by one instead of replacing it. Neither input is
// modified.
func Merge(a, b *Graph) *Graph {
	out := &Graph{Nodes: []Node{}, Edges: []Edge{}}

	nodeIndex := make(map[string]int)
	addNode := func(n Node) {
		if i, ok := nodeIndex[n.ID]; ok {
			out.Nodes[i] = n
			return
		}
		nodeIndex[n.ID] = len(out.Nodes)
		out.Nodes = append(out.Nodes, n)
	}

	edgeIndex := make(map[string]int)
	addEdge := func(e Edge) {
		if i, ok := edgeIndex[e.ID]; ok {
			out.Edges[i].Weight++
			return
		}
		e.Snippets = append([]Snippet{}, e.Snippets...)
		edgeIndex[e.ID] = len(out.Edges)
		out.Edges = append(out.Edges, e)
	}

	for _, g := range []*Graph{a, b} {
		if g == nil {
			continue
		}
		for _, n := range g.Nodes {
			addNode(n)
		}
		for _, e := range g.Edges {
			addEdge(e)
		}
	}
	return out
}

// MergeAll folds Merge over graphs in order.
func MergeAll(graphs ...*Graph) *Graph {
	out := &Graph{Nodes: []Node{}, Edges: []Edge{}}
	for _, g := range graphs {
		out = Merge(out, g)
	}
	return out
}

// ReferenceCounts returns how many references were recorded per symbol name.
// Symbols with no references are listed with zero.
func (s *SymbolsAndReferences) ReferenceCounts() map[string]int {
	byID := make(map[string]string, len(s.Symbols))
	counts := make(map[string]int, len(s.Symbols))
	for _, sym := range s.Symbols {
		byID[sym.ID] = sym.Name
		counts[sym.Name] += 0
	}
	for _, ref := range s.References {
		if name, ok := byID[ref.SymbolID]; ok {
			counts[name]++
		}
	}
	return counts
}
