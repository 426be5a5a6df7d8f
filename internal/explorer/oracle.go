package explorer

import (
	"context"

	"go.uber.org/zap"

	"callgraph/internal/lsp"
	"callgraph/internal/retry"
)

// Oracle answers relation queries about code. A nil slice means the oracle had
// no answer; a non-nil empty slice means there is definitively nothing.
type Oracle interface {
	ListSymbols(ctx context.Context, file string) ([]lsp.DocumentSymbol, error)
	PrepareCallHierarchy(ctx context.Context, file string, pos lsp.Position) ([]lsp.HierarchyItem, error)
	PrepareTypeHierarchy(ctx context.Context, file string, pos lsp.Position) ([]lsp.HierarchyItem, error)
	OutgoingCalls(ctx context.Context, item lsp.HierarchyItem) ([]lsp.CallHierarchyOutgoingCall, error)
	IncomingCalls(ctx context.Context, item lsp.HierarchyItem) ([]lsp.CallHierarchyIncomingCall, error)
	Supertypes(ctx context.Context, item lsp.HierarchyItem) ([]lsp.HierarchyItem, error)
	Subtypes(ctx context.Context, item lsp.HierarchyItem) ([]lsp.HierarchyItem, error)
	References(ctx context.Context, file string, pos lsp.Position) ([]lsp.Location, error)
}

// ClientOracle adapts a language server client. Nested document symbols are
// flattened so members are explored like top-level declarations.
func ClientOracle(c *lsp.Client) Oracle {
	return &clientOracle{Client: c}
}

type clientOracle struct {
	*lsp.Client
}

func (o *clientOracle) ListSymbols(ctx context.Context, file string) ([]lsp.DocumentSymbol, error) {
	symbols, err := o.DocumentSymbols(ctx, file)
	if err != nil || symbols == nil {
		return nil, err
	}
	flat := lsp.FlattenSymbols(symbols)
	if flat == nil {
		flat = []lsp.DocumentSymbol{}
	}
	return flat, nil
}

// RetryingOracle retries every query that fails or comes back nil. It never
// returns an error: a query that keeps failing yields nil.
type RetryingOracle struct {
	oracle Oracle
	opts   retry.Options
}

// NewRetryingOracle wraps oracle with the given retry policy.
func NewRetryingOracle(oracle Oracle, opts retry.Options, logger *zap.SugaredLogger) *RetryingOracle {
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &RetryingOracle{oracle: oracle, opts: opts}
}

func (r *RetryingOracle) ListSymbols(ctx context.Context, file string) ([]lsp.DocumentSymbol, error) {
	return retry.Do(ctx, r.opts, func(ctx context.Context) ([]lsp.DocumentSymbol, error) {
		return r.oracle.ListSymbols(ctx, file)
	}), nil
}

func (r *RetryingOracle) PrepareCallHierarchy(ctx context.Context, file string, pos lsp.Position) ([]lsp.HierarchyItem, error) {
	return retry.Do(ctx, r.opts, func(ctx context.Context) ([]lsp.HierarchyItem, error) {
		return r.oracle.PrepareCallHierarchy(ctx, file, pos)
	}), nil
}

func (r *RetryingOracle) PrepareTypeHierarchy(ctx context.Context, file string, pos lsp.Position) ([]lsp.HierarchyItem, error) {
	return retry.Do(ctx, r.opts, func(ctx context.Context) ([]lsp.HierarchyItem, error) {
		return r.oracle.PrepareTypeHierarchy(ctx, file, pos)
	}), nil
}

func (r *RetryingOracle) OutgoingCalls(ctx context.Context, item lsp.HierarchyItem) ([]lsp.CallHierarchyOutgoingCall, error) {
	return retry.Do(ctx, r.opts, func(ctx context.Context) ([]lsp.CallHierarchyOutgoingCall, error) {
		return r.oracle.OutgoingCalls(ctx, item)
	}), nil
}

func (r *RetryingOracle) IncomingCalls(ctx context.Context, item lsp.HierarchyItem) ([]lsp.CallHierarchyIncomingCall, error) {
	return retry.Do(ctx, r.opts, func(ctx context.Context) ([]lsp.CallHierarchyIncomingCall, error) {
		return r.oracle.IncomingCalls(ctx, item)
	}), nil
}

func (r *RetryingOracle) Supertypes(ctx context.Context, item lsp.HierarchyItem) ([]lsp.HierarchyItem, error) {
	return retry.Do(ctx, r.opts, func(ctx context.Context) ([]lsp.HierarchyItem, error) {
		return r.oracle.Supertypes(ctx, item)
	}), nil
}

func (r *RetryingOracle) Subtypes(ctx context.Context, item lsp.HierarchyItem) ([]lsp.HierarchyItem, error) {
	return retry.Do(ctx, r.opts, func(ctx context.Context) ([]lsp.HierarchyItem, error) {
		return r.oracle.Subtypes(ctx, item)
	}), nil
}

func (r *RetryingOracle) References(ctx context.Context, file string, pos lsp.Position) ([]lsp.Location, error) {
	return retry.Do(ctx, r.opts, func(ctx context.Context) ([]lsp.Location, error) {
		return r.oracle.References(ctx, file, pos)
	}), nil
}
