package explorer

import (
	"context"
	"time"

	"callgraph/internal/files"
	"callgraph/internal/graph"
	"callgraph/internal/logger"
	"callgraph/internal/lsp"
	"callgraph/util"
)

// CallgraphForFile records one level of outgoing calls for every symbol
// declared in file. It does not recurse. total is the size of the batch the
// file belongs to and scales the progress increment.
func (e *Explorer) CallgraphForFile(ctx context.Context, b *graph.Builder, file string, total int) {
	keep := func(int) bool { return true }
	if e.opts.CallableOnly {
		keep = lsp.IsCallable
	}
	e.relationForFile(ctx, b, file, total, OutgoingCalls, keep)
}

// TypeHierarchyForFile records the direct supertypes of every type declared
// in file.
func (e *Explorer) TypeHierarchyForFile(ctx context.Context, b *graph.Builder, file string, total int) {
	e.relationForFile(ctx, b, file, total, Supertypes, lsp.IsTypeLike)
}

// relationForFile adds a node per kept symbol, then one relation step per
// symbol with edges pointing from the symbol to each neighbor.
func (e *Explorer) relationForFile(ctx context.Context, b *graph.Builder, file string, total int, rel Relation, keep func(kind int) bool) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	log := e.logger.With(logger.FieldRelation, rel.Name, logger.FieldFile, file)

	if !e.accepts(file) {
		e.reportFile(file, total)
		return
	}

	all, err := e.oracle.ListSymbols(ctx, file)
	if err != nil {
		log.Infow("failed to list symbols", logger.FieldError, err)
		e.reportFile(file, total)
		return
	}
	var symbols []lsp.DocumentSymbol
	for _, s := range all {
		if keep(s.Kind) {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		log.Infow("no symbols found")
		e.reportFile(file, total)
		return
	}

	for _, s := range symbols {
		if ctx.Err() != nil {
			return
		}
		pos := s.SelectionRange.Start
		b.AddNode(graph.KindSymbol, file, s.Name, pos.Line, pos.Character)
	}

	for _, s := range symbols {
		if ctx.Err() != nil {
			return
		}
		pos := s.SelectionRange.Start
		items, err := rel.Prepare(ctx, e.oracle, file, pos)
		if err != nil || len(items) == 0 {
			log.Debugw("no hierarchy item for symbol", logger.FieldSymbol, s.Name, logger.FieldError, err)
			continue
		}
		if len(items) > 1 {
			log.Debugw("combining hierarchy items", logger.FieldSymbol, s.Name, logger.FieldCount, len(items))
		}

		// Every prepared item contributes neighbors to the symbol.
		var neighbors []Neighbor
		for _, item := range items {
			if ctx.Err() != nil {
				return
			}
			step, err := rel.Step(ctx, e.oracle, item)
			if err != nil {
				log.Infow("relation step failed", logger.FieldSymbol, item.Name, logger.FieldError, err)
				continue
			}
			neighbors = append(neighbors, step...)
		}
		if len(neighbors) == 0 {
			log.Infow("no related items found", logger.FieldSymbol, s.Name)
			continue
		}

		for _, n := range neighbors {
			if ctx.Err() != nil {
				return
			}
			neighborFile := util.URIToPath(n.Item.URI)
			if !e.accepts(neighborFile) {
				continue
			}
			dst := n.Item.SelectionRange.Start
			edge := b.AddEdge(
				graph.KindSymbol, file, s.Name, pos.Line, pos.Character,
				graph.KindSymbol, neighborFile, n.Item.Name, dst.Line, dst.Character,
			)
			e.addSnippets(b, edge.Key, file, s.Name, n.FromRanges)
		}
	}

	log.Debugw("file explored", logger.FieldDurationMS, time.Since(start).Milliseconds())
	e.reportFile(file, total)
}

// FileHierarchyForFile records which files reference the symbols declared in
// file, as edges from the referencing file to file. Every symbol and
// reference seen is also recorded in the builder's side channel.
func (e *Explorer) FileHierarchyForFile(ctx context.Context, b *graph.Builder, file string, total int) {
	if ctx.Err() != nil {
		return
	}
	log := e.logger.With(logger.FieldRelation, "references", logger.FieldFile, file)

	if !e.accepts(file) {
		e.reportFile(file, total)
		return
	}
	display := files.RelativeTo(e.opts.Root, file)
	b.AddNode(graph.KindFile, file, display, 0, 0)

	symbols, err := e.oracle.ListSymbols(ctx, file)
	if err != nil || len(symbols) == 0 {
		log.Infow("no symbols found", logger.FieldError, err)
		e.reportFile(file, total)
		return
	}

	for _, s := range symbols {
		if ctx.Err() != nil {
			return
		}
		symbol := b.AddSymbol(s, file)

		refs, err := e.oracle.References(ctx, file, s.SelectionRange.Start)
		if err != nil || refs == nil {
			log.Infow("no references found", logger.FieldSymbol, s.Name, logger.FieldError, err)
			continue
		}

		for _, ref := range refs {
			if ctx.Err() != nil {
				return
			}
			b.AddReference(ref, symbol)

			refFile := util.URIToPath(ref.URI)
			if refFile == file || !e.accepts(refFile) {
				continue
			}
			b.AddEdge(
				graph.KindFile, refFile, files.RelativeTo(e.opts.Root, refFile), 0, 0,
				graph.KindFile, file, display, 0, 0,
			)
		}
	}

	e.reportFile(file, total)
}

func (e *Explorer) reportFile(file string, total int) {
	if total <= 0 {
		total = 1
	}
	e.report(Progress{Message: files.RelativeTo(e.opts.Root, file), Increment: 100 / float64(total)})
}

// CallgraphForFolder runs CallgraphForFile over every file in paths.
func (e *Explorer) CallgraphForFolder(ctx context.Context, b *graph.Builder, paths []string) {
	e.forEachFile(ctx, b, paths, e.CallgraphForFile)
}

// TypeHierarchyForFolder runs TypeHierarchyForFile over every file in paths.
func (e *Explorer) TypeHierarchyForFolder(ctx context.Context, b *graph.Builder, paths []string) {
	e.forEachFile(ctx, b, paths, e.TypeHierarchyForFile)
}

// FileHierarchyForFolder runs FileHierarchyForFile over every file in paths.
func (e *Explorer) FileHierarchyForFolder(ctx context.Context, b *graph.Builder, paths []string) {
	e.forEachFile(ctx, b, paths, e.FileHierarchyForFile)
}

func (e *Explorer) forEachFile(ctx context.Context, b *graph.Builder, paths []string, fn func(context.Context, *graph.Builder, string, int)) {
	start := time.Now()
	for _, path := range paths {
		if ctx.Err() != nil {
			e.logger.Infow("exploration cancelled", logger.FieldTotalCount, len(paths))
			return
		}
		fn(ctx, b, path, len(paths))
	}
	e.logger.Infow("folder explored",
		logger.FieldTotalCount, len(paths),
		logger.FieldNodeCount, b.NodeCount(),
		logger.FieldEdgeCount, b.EdgeCount(),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
}
