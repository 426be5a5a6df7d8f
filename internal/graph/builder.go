package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"callgraph/internal/lsp"
	"callgraph/util"
)

type edgeEntry struct {
	edge      *Edge
	sourceKey string
	targetKey string
}

// Builder is the identity-keyed node/edge store. Repeated discoveries of the
// same entity resolve to the same record; the first writer's position wins.
//
// Builder has no internal locking. Use one Builder per writer and combine
// results with Merge.
type Builder struct {
	newID func(namespace, key string) string

	nodesByKey map[string]*Node
	nodeOrder  []string
	edgesByKey map[string]*edgeEntry
	edgeOrder  []string

	symbolsByKey    map[string]*Symbol
	symbolOrder     []string
	referencesByKey map[string]*Reference
	referenceOrder  []string
}

// Option configures a Builder.
type Option func(*Builder)

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(gen func() string) Option {
	return func(b *Builder) {
		b.newID = func(string, string) string { return gen() }
	}
}

// WithContentIDs derives every id from the record's key. Stores built this
// way agree on ids, so Merge unifies their nodes and sums the weights of
// edges observed by both.
func WithContentIDs() Option {
	return func(b *Builder) {
		b.newID = func(namespace, key string) string {
			return util.ContentHash(namespace, key)[:24]
		}
	}
}

// SequentialIDs returns a generator producing prefix1, prefix2, ...
func SequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s%d", prefix, n.Add(1))
	}
}

// NewBuilder creates an empty store.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		newID:           func(string, string) string { return uuid.NewString() },
		nodesByKey:      make(map[string]*Node),
		edgesByKey:      make(map[string]*edgeEntry),
		symbolsByKey:    make(map[string]*Symbol),
		referencesByKey: make(map[string]*Reference),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddNode returns the node with the same filepath and display name, creating
// it if needed.
func (b *Builder) AddNode(kind NodeKind, filepath, displayName string, line, col int) Node {
	return *b.addNode(kind, filepath, displayName, line, col)
}

func (b *Builder) addNode(kind NodeKind, filepath, displayName string, line, col int) *Node {
	key := NodeKey(filepath, displayName)
	if node, ok := b.nodesByKey[key]; ok {
		return node
	}
	node := &Node{
		ID:          b.newID("node", key),
		Key:         key,
		Kind:        kind,
		DisplayName: displayName,
		FilePath:    filepath,
		Line:        line,
		Column:      col,
	}
	b.nodesByKey[key] = node
	b.nodeOrder = append(b.nodeOrder, key)
	return node
}

// AddEdge resolves both endpoints and returns the edge between them. An
// existing edge is returned unchanged: repeated adds within one store do not
// bump the weight.
func (b *Builder) AddEdge(
	srcKind NodeKind, srcFilepath, srcName string, srcLine, srcCol int,
	dstKind NodeKind, dstFilepath, dstName string, dstLine, dstCol int,
) Edge {
	src := b.addNode(srcKind, srcFilepath, srcName, srcLine, srcCol)
	dst := b.addNode(dstKind, dstFilepath, dstName, dstLine, dstCol)

	key := EdgeKey(src.Key, dst.Key)
	if entry, ok := b.edgesByKey[key]; ok {
		return *entry.edge
	}
	edge := &Edge{
		ID:       b.newID("edge", key),
		Key:      key,
		Source:   src.ID,
		Target:   dst.ID,
		Weight:   1,
		Snippets: []Snippet{},
	}
	b.edgesByKey[key] = &edgeEntry{edge: edge, sourceKey: src.Key, targetKey: dst.Key}
	b.edgeOrder = append(b.edgeOrder, key)
	return *edge
}

// AddSnippet appends a source excerpt to an existing edge. Snippets with the
// same line and text are recorded once.
func (b *Builder) AddSnippet(edgeKey string, snippet Snippet) bool {
	entry, ok := b.edgesByKey[edgeKey]
	if !ok {
		return false
	}
	for _, s := range entry.edge.Snippets {
		if s.Text == snippet.Text && sameLine(s.Line, snippet.Line) {
			return true
		}
	}
	entry.edge.Snippets = append(entry.edge.Snippets, snippet)
	return true
}

func sameLine(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// AddSymbol records a declaration for the side channel, deduplicated by
// filepath and name.
func (b *Builder) AddSymbol(raw lsp.DocumentSymbol, filepath string) Symbol {
	key := NodeKey(filepath, raw.Name)
	if sym, ok := b.symbolsByKey[key]; ok {
		return *sym
	}
	pos := raw.SelectionRange.Start
	sym := &Symbol{
		ID:       b.newID("symbol", key),
		Key:      key,
		Name:     raw.Name,
		FilePath: filepath,
		Line:     pos.Line,
		Column:   pos.Character,
		Kind:     lsp.SymbolKindName(raw.Kind),
	}
	b.symbolsByKey[key] = sym
	b.symbolOrder = append(b.symbolOrder, key)
	return *sym
}

// AddReference records a use site of symbol, deduplicated by filepath and line.
func (b *Builder) AddReference(raw lsp.Location, symbol Symbol) Reference {
	filepath := util.URIToPath(raw.URI)
	key := fmt.Sprintf("%s|%d", filepath, raw.Range.Start.Line)
	if ref, ok := b.referencesByKey[key]; ok {
		return *ref
	}
	ref := &Reference{
		ID:       b.newID("reference", key),
		Key:      key,
		SymbolID: symbol.ID,
		FilePath: filepath,
		Line:     raw.Range.Start.Line,
		Column:   raw.Range.Start.Character,
	}
	b.referencesByKey[key] = ref
	b.referenceOrder = append(b.referenceOrder, key)
	return *ref
}

// Verify checks that every edge endpoint resolves to a stored node.
func (b *Builder) Verify() error {
	for _, key := range b.edgeOrder {
		entry := b.edgesByKey[key]
		_, hasSource := b.nodesByKey[entry.sourceKey]
		_, hasTarget := b.nodesByKey[entry.targetKey]
		if !hasSource || !hasTarget {
			return &IntegrityError{EdgeKey: key, SourceKey: entry.sourceKey, TargetKey: entry.targetKey}
		}
	}
	return nil
}

// Graph verifies the store and returns a snapshot in insertion order.
func (b *Builder) Graph() (*Graph, error) {
	if err := b.Verify(); err != nil {
		return nil, err
	}

	g := &Graph{
		Nodes: make([]Node, 0, len(b.nodeOrder)),
		Edges: make([]Edge, 0, len(b.edgeOrder)),
	}
	for _, key := range b.nodeOrder {
		g.Nodes = append(g.Nodes, *b.nodesByKey[key])
	}
	for _, key := range b.edgeOrder {
		edge := *b.edgesByKey[key].edge
		edge.Snippets = append([]Snippet{}, edge.Snippets...)
		g.Edges = append(g.Edges, edge)
	}
	return g, nil
}

// SymbolsAndReferences returns the side channel in insertion order.
func (b *Builder) SymbolsAndReferences() *SymbolsAndReferences {
	out := &SymbolsAndReferences{
		Symbols:    make([]Symbol, 0, len(b.symbolOrder)),
		References: make([]Reference, 0, len(b.referenceOrder)),
	}
	for _, key := range b.symbolOrder {
		out.Symbols = append(out.Symbols, *b.symbolsByKey[key])
	}
	for _, key := range b.referenceOrder {
		out.References = append(out.References, *b.referencesByKey[key])
	}
	return out
}

// NodeCount returns the number of stored nodes.
func (b *Builder) NodeCount() int { return len(b.nodeOrder) }

// EdgeCount returns the number of stored edges.
func (b *Builder) EdgeCount() int { return len(b.edgeOrder) }
