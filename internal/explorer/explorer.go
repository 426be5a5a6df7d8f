// Package explorer walks code relations reported by an Oracle and records
// what it finds in a graph.Builder.
//
// A walk is sequential: oracle calls are issued one at a time, so a
// deterministic oracle yields a deterministic graph. Cancellation is polled
// before every oracle call, before every recursive descent and before every
// edge is added. A cancelled walk unwinds quietly and leaves whatever was
// discovered so far in the builder.
package explorer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"callgraph/internal/files"
	"callgraph/internal/graph"
	"callgraph/internal/logger"
	"callgraph/internal/lsp"
	"callgraph/util"
)

// Progress is reported once per explored item or file. Increment is a
// percentage of the whole batch and is zero for symbol walks.
type Progress struct {
	Message   string
	Increment float64
}

// Options configures an Explorer.
type Options struct {
	// FilterByPath restricts every edge endpoint to this path. Empty allows all.
	FilterByPath string
	// Root is stripped from file paths to form file node display names.
	Root string
	// CallableOnly limits batch call graphs to functions, methods and constructors.
	CallableOnly bool
	// Snippets attaches call-site source lines to call edges.
	Snippets bool
	// PickItem chooses among several prepared items. Defaults to the first.
	PickItem func(items []lsp.HierarchyItem) lsp.HierarchyItem
	// OnProgress receives progress reports. May be nil.
	OnProgress func(Progress)
	Logger     *zap.SugaredLogger
}

// Explorer runs relation walks against an oracle.
type Explorer struct {
	oracle Oracle
	opts   Options
	logger *zap.SugaredLogger
}

// New creates an Explorer. The oracle should already be wrapped in a
// RetryingOracle when retries are wanted.
func New(oracle Oracle, opts Options) *Explorer {
	log := opts.Logger
	if log == nil {
		log = logger.Named("explorer")
	}
	return &Explorer{oracle: oracle, opts: opts, logger: log}
}

// Direction decides which way discovered edges point.
type Direction int

const (
	// Forward edges run from the current item to its neighbor.
	Forward Direction = iota
	// Backward edges run from the neighbor to the current item.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Neighbor is one step along a relation. FromRanges are call sites inside
// the calling item, when the relation has them.
type Neighbor struct {
	Item       lsp.HierarchyItem
	FromRanges []lsp.Range
}

// Relation is a directed one-step relation the explorer can walk.
type Relation struct {
	Name      string
	Direction Direction
	Prepare   func(ctx context.Context, o Oracle, file string, pos lsp.Position) ([]lsp.HierarchyItem, error)
	Step      func(ctx context.Context, o Oracle, item lsp.HierarchyItem) ([]Neighbor, error)
}

// Walk explores rel recursively from the item at file:pos and records every
// accepted edge in b. Items are queried at most once per walk, so cyclic
// relations terminate.
func (e *Explorer) Walk(ctx context.Context, b *graph.Builder, file string, pos lsp.Position, rel Relation) {
	e.walk(ctx, b, file, pos, rel, make(map[string]bool))
}

func visitKey(file string, pos lsp.Position) string {
	return fmt.Sprintf("%s#%d#%d", file, pos.Line, pos.Character)
}

func (e *Explorer) walk(ctx context.Context, b *graph.Builder, file string, pos lsp.Position, rel Relation, visited map[string]bool) {
	if ctx.Err() != nil {
		return
	}
	log := e.logger.With(logger.FieldRelation, rel.Name, logger.FieldFile, file, logger.FieldLine, pos.Line, logger.FieldColumn, pos.Character)

	items, err := rel.Prepare(ctx, e.oracle, file, pos)
	if err != nil {
		log.Warnw("failed to prepare hierarchy item", logger.FieldError, err)
		return
	}
	if len(items) == 0 {
		log.Infow("no hierarchy item found")
		return
	}
	item := e.pick(items, log)
	itemFile := util.URIToPath(item.URI)
	visited[visitKey(file, pos)] = true
	visited[visitKey(itemFile, item.SelectionRange.Start)] = true
	e.report(Progress{Message: item.Name})

	if ctx.Err() != nil {
		return
	}
	neighbors, err := rel.Step(ctx, e.oracle, item)
	if err != nil {
		log.Warnw("relation query failed", logger.FieldSymbol, item.Name, logger.FieldError, err)
		return
	}
	if neighbors == nil {
		log.Infow("no related items found", logger.FieldSymbol, item.Name)
	}

	for _, n := range neighbors {
		if ctx.Err() != nil {
			return
		}
		neighborFile := util.URIToPath(n.Item.URI)
		if !e.accepts(itemFile) || !e.accepts(neighborFile) {
			continue
		}

		if rel.Direction == Forward {
			e.addItemEdge(b, item, n.Item, itemFile, n.FromRanges)
		} else {
			e.addItemEdge(b, n.Item, item, neighborFile, n.FromRanges)
		}

		next := n.Item.SelectionRange.Start
		if !visited[visitKey(neighborFile, next)] {
			e.walk(ctx, b, neighborFile, next, rel, visited)
		}
	}
}

// pick resolves ambiguous identity: several prepared items for one position.
func (e *Explorer) pick(items []lsp.HierarchyItem, log *zap.SugaredLogger) lsp.HierarchyItem {
	if len(items) > 1 {
		log.Warnw("multiple hierarchy items found, using one", logger.FieldCount, len(items))
		if e.opts.PickItem != nil {
			return e.opts.PickItem(items)
		}
	}
	return items[0]
}

func (e *Explorer) accepts(path string) bool {
	return files.Within(path, e.opts.FilterByPath)
}

func (e *Explorer) report(p Progress) {
	if e.opts.OnProgress != nil {
		e.opts.OnProgress(p)
	}
}

// addItemEdge adds a symbol edge between two hierarchy items. Call-site
// snippets are read from callerFile, the file that holds fromRanges.
func (e *Explorer) addItemEdge(b *graph.Builder, src, dst lsp.HierarchyItem, callerFile string, fromRanges []lsp.Range) {
	srcPos, dstPos := src.SelectionRange.Start, dst.SelectionRange.Start
	edge := b.AddEdge(
		graph.KindSymbol, util.URIToPath(src.URI), src.Name, srcPos.Line, srcPos.Character,
		graph.KindSymbol, util.URIToPath(dst.URI), dst.Name, dstPos.Line, dstPos.Character,
	)
	e.addSnippets(b, edge.Key, callerFile, src.Name, fromRanges)
}

func (e *Explorer) addSnippets(b *graph.Builder, edgeKey, file, displayName string, ranges []lsp.Range) {
	if !e.opts.Snippets {
		return
	}
	for _, r := range ranges {
		line := r.Start.Line
		text, err := files.ReadLine(file, line)
		if err != nil {
			e.logger.Debugw("failed to read snippet", logger.FieldFile, file, logger.FieldLine, line, logger.FieldError, err)
			continue
		}
		b.AddSnippet(edgeKey, graph.Snippet{Line: &line, Text: strings.TrimSpace(text), DisplayName: displayName})
	}
}
