package explorer

import (
	"context"

	"callgraph/internal/graph"
	"callgraph/internal/lsp"
)

func prepareCalls(ctx context.Context, o Oracle, file string, pos lsp.Position) ([]lsp.HierarchyItem, error) {
	return o.PrepareCallHierarchy(ctx, file, pos)
}

func prepareTypes(ctx context.Context, o Oracle, file string, pos lsp.Position) ([]lsp.HierarchyItem, error) {
	return o.PrepareTypeHierarchy(ctx, file, pos)
}

func asNeighbors(items []lsp.HierarchyItem) []Neighbor {
	if items == nil {
		return nil
	}
	out := make([]Neighbor, len(items))
	for i, item := range items {
		out[i] = Neighbor{Item: item}
	}
	return out
}

// OutgoingCalls walks from a function to the functions it calls.
var OutgoingCalls = Relation{
	Name:      "outgoing_calls",
	Direction: Forward,
	Prepare:   prepareCalls,
	Step: func(ctx context.Context, o Oracle, item lsp.HierarchyItem) ([]Neighbor, error) {
		calls, err := o.OutgoingCalls(ctx, item)
		if err != nil || calls == nil {
			return nil, err
		}
		out := make([]Neighbor, len(calls))
		for i, c := range calls {
			out[i] = Neighbor{Item: c.To, FromRanges: c.FromRanges}
		}
		return out, nil
	},
}

// IncomingCalls walks from a function to its callers.
var IncomingCalls = Relation{
	Name:      "incoming_calls",
	Direction: Backward,
	Prepare:   prepareCalls,
	Step: func(ctx context.Context, o Oracle, item lsp.HierarchyItem) ([]Neighbor, error) {
		calls, err := o.IncomingCalls(ctx, item)
		if err != nil || calls == nil {
			return nil, err
		}
		out := make([]Neighbor, len(calls))
		for i, c := range calls {
			out[i] = Neighbor{Item: c.From, FromRanges: c.FromRanges}
		}
		return out, nil
	},
}

// Supertypes walks from a type to the types it extends or implements.
var Supertypes = Relation{
	Name:      "supertypes",
	Direction: Forward,
	Prepare:   prepareTypes,
	Step: func(ctx context.Context, o Oracle, item lsp.HierarchyItem) ([]Neighbor, error) {
		items, err := o.Supertypes(ctx, item)
		return asNeighbors(items), err
	},
}

// Subtypes walks from a type to the types extending or implementing it.
var Subtypes = Relation{
	Name:      "subtypes",
	Direction: Backward,
	Prepare:   prepareTypes,
	Step: func(ctx context.Context, o Oracle, item lsp.HierarchyItem) ([]Neighbor, error) {
		items, err := o.Subtypes(ctx, item)
		return asNeighbors(items), err
	},
}

// CallgraphForSymbol records the callees and callers reachable from the
// function at file:pos. Each direction keeps its own visited set.
func (e *Explorer) CallgraphForSymbol(ctx context.Context, b *graph.Builder, file string, pos lsp.Position) {
	e.Walk(ctx, b, file, pos, OutgoingCalls)
	e.Walk(ctx, b, file, pos, IncomingCalls)
}

// TypeHierarchyForSymbol records the supertypes and subtypes reachable from
// the type at file:pos.
func (e *Explorer) TypeHierarchyForSymbol(ctx context.Context, b *graph.Builder, file string, pos lsp.Position) {
	e.Walk(ctx, b, file, pos, Supertypes)
	e.Walk(ctx, b, file, pos, Subtypes)
}
