// Package draw runs an exploration end to end: it resolves the target,
// picks the driver for the requested relation and scope, and stores the
// result as a snapshot.
package draw

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"callgraph/internal/errors"
	"callgraph/internal/explorer"
	"callgraph/internal/files"
	"callgraph/internal/graph"
	"callgraph/internal/logger"
	"callgraph/internal/lsp"
	"callgraph/internal/rollup"
	"callgraph/internal/store"
)

// Kind is the relation a draw explores. Its value is stored as the
// snapshot kind.
type Kind string

const (
	KindCallgraph     Kind = "callgraph"
	KindTypeHierarchy Kind = "typehierarchy"
	KindFileHierarchy Kind = "filehierarchy"
)

// Scope is what the draw starts from.
type Scope string

const (
	ScopeFile   Scope = "file"
	ScopeFolder Scope = "folder"
	ScopeSymbol Scope = "symbol"
)

// Request describes one draw.
type Request struct {
	Kind   Kind
	Scope  Scope
	Target string
	// Position locates the symbol for ScopeSymbol. When nil, Symbol is
	// looked up by name among the symbols of Target.
	Position *lsp.Position
	Symbol   string
	// FilterPath overrides the configured path filter when set.
	FilterPath string
}

// Options configures a Service.
type Options struct {
	Explorer explorer.Options
	// Extensions limits folder draws to these file extensions. Empty allows all.
	Extensions []string
	// Workers is the number of concurrent jobs for folder call graphs and
	// type hierarchies.
	Workers int
	Logger  *zap.SugaredLogger
}

// Service draws graphs and keeps them in a store.
type Service struct {
	oracle explorer.Oracle
	store  *store.Store
	opts   Options
	logger *zap.SugaredLogger
}

// New creates a Service.
func New(oracle explorer.Oracle, st *store.Store, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Named("draw")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	// Oracle paths are absolute, so a configured filter is taken relative to
	// the workspace root.
	if f := opts.Explorer.FilterByPath; f != "" && !filepath.IsAbs(f) {
		root := opts.Explorer.Root
		if root == "" {
			root, _ = os.Getwd()
		}
		opts.Explorer.FilterByPath = filepath.Join(root, f)
	}
	return &Service{oracle: oracle, store: st, opts: opts, logger: log}
}

// Store returns the snapshot store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Draw runs req and stores the graph. A cancelled draw returns the partial
// graph unsaved, with an empty snapshot id and no error.
func (s *Service) Draw(ctx context.Context, req Request) (*store.Snapshot, error) {
	start := time.Now()
	target, err := s.resolveTarget(req)
	if err != nil {
		return nil, err
	}

	exOpts := s.opts.Explorer
	if req.FilterPath != "" {
		filter, err := filepath.Abs(req.FilterPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve filter path %s", req.FilterPath)
		}
		exOpts.FilterByPath = filter
	}
	ex := explorer.New(s.oracle, exOpts)

	var (
		g    *graph.Graph
		side *graph.SymbolsAndReferences
	)
	switch req.Scope {
	case ScopeSymbol:
		g, err = s.drawSymbol(ctx, ex, req, target)
	case ScopeFile:
		g, side, err = s.drawFile(ctx, ex, req.Kind, target)
	case ScopeFolder:
		g, side, err = s.drawFolder(ctx, ex, req.Kind, target)
	}
	if err != nil {
		return nil, err
	}

	snap := &store.Snapshot{Kind: string(req.Kind), Seed: seed(req, target), Graph: g, Symbols: side}
	if req.Scope == ScopeFolder {
		if rel := files.RelativeTo(s.opts.Explorer.Root, target); rel != "." && rel != target {
			snap.Expanded = rollup.NewExpandedSet(rel).Folders()
		}
	}

	log := s.logger.With(
		logger.FieldRelation, req.Kind,
		logger.FieldFile, target,
		logger.FieldNodeCount, len(g.Nodes),
		logger.FieldEdgeCount, len(g.Edges),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	if ctx.Err() != nil {
		log.Infow("draw cancelled, partial graph not stored")
		snap.CreatedAt = time.Now()
		return snap, nil
	}

	if _, err := s.store.Save(ctx, snap); err != nil {
		return nil, err
	}
	log.Infow("graph drawn", logger.FieldSnapshot, snap.ID)
	return snap, nil
}

func (s *Service) resolveTarget(req Request) (string, error) {
	switch req.Kind {
	case KindCallgraph, KindTypeHierarchy, KindFileHierarchy:
	default:
		return "", errors.NewInvalidRequestError("unknown graph kind %q", req.Kind)
	}
	if req.Target == "" {
		return "", errors.NewInvalidRequestError("target path is required")
	}

	target, err := filepath.Abs(req.Target)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", req.Target)
	}
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFoundError("path %s", target)
		}
		return "", errors.Wrapf(err, "failed to stat %s", target)
	}

	switch req.Scope {
	case ScopeFile, ScopeSymbol:
		if info.IsDir() {
			return "", errors.NewInvalidRequestError("%s is a directory, not a file", target)
		}
		if req.Scope == ScopeSymbol && req.Kind == KindFileHierarchy {
			return "", errors.NewInvalidRequestError("file hierarchy cannot start from a symbol")
		}
	case ScopeFolder:
		if !info.IsDir() {
			return "", errors.NewInvalidRequestError("%s is not a directory", target)
		}
	default:
		return "", errors.NewInvalidRequestError("unknown scope %q", req.Scope)
	}
	return target, nil
}

func seed(req Request, target string) string {
	if req.Scope != ScopeSymbol {
		return target
	}
	if req.Position != nil {
		return fmt.Sprintf("%s#%d#%d", target, req.Position.Line, req.Position.Character)
	}
	return target + "#" + req.Symbol
}

func (s *Service) drawSymbol(ctx context.Context, ex *explorer.Explorer, req Request, file string) (*graph.Graph, error) {
	pos, err := s.position(ctx, req, file)
	if err != nil {
		return nil, err
	}
	b := graph.NewBuilder()
	if req.Kind == KindTypeHierarchy {
		ex.TypeHierarchyForSymbol(ctx, b, file, pos)
	} else {
		ex.CallgraphForSymbol(ctx, b, file, pos)
	}
	return b.Graph()
}

// position returns where the requested symbol is declared.
func (s *Service) position(ctx context.Context, req Request, file string) (lsp.Position, error) {
	if req.Position != nil {
		return *req.Position, nil
	}
	if req.Symbol == "" {
		return lsp.Position{}, errors.NewInvalidRequestError("a symbol name or position is required")
	}
	symbols, err := s.oracle.ListSymbols(ctx, file)
	if err != nil {
		return lsp.Position{}, errors.Wrapf(err, "failed to list symbols of %s", file)
	}
	for _, sym := range symbols {
		if sym.Name == req.Symbol {
			return sym.SelectionRange.Start, nil
		}
	}
	return lsp.Position{}, errors.NewNotFoundError("symbol %s in %s", req.Symbol, file)
}

func (s *Service) drawFile(ctx context.Context, ex *explorer.Explorer, kind Kind, file string) (*graph.Graph, *graph.SymbolsAndReferences, error) {
	b := graph.NewBuilder()
	switch kind {
	case KindCallgraph:
		ex.CallgraphForFile(ctx, b, file, 1)
	case KindTypeHierarchy:
		ex.TypeHierarchyForFile(ctx, b, file, 1)
	case KindFileHierarchy:
		ex.FileHierarchyForFile(ctx, b, file, 1)
	}
	g, err := b.Graph()
	if err != nil {
		return nil, nil, err
	}
	if kind == KindFileHierarchy {
		return g, b.SymbolsAndReferences(), nil
	}
	return g, nil, nil
}

func (s *Service) drawFolder(ctx context.Context, ex *explorer.Explorer, kind Kind, folder string) (*graph.Graph, *graph.SymbolsAndReferences, error) {
	paths, err := files.List(ctx, folder, s.opts.Extensions...)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debugw("files listed", logger.FieldFile, folder, logger.FieldCount, len(paths))

	if kind == KindFileHierarchy {
		// References are collected on one builder so the side channel stays whole.
		b := graph.NewBuilder()
		ex.FileHierarchyForFolder(ctx, b, paths)
		g, err := b.Graph()
		if err != nil {
			return nil, nil, err
		}
		return g, b.SymbolsAndReferences(), nil
	}

	driver := ex.CallgraphForFile
	if kind == KindTypeHierarchy {
		driver = ex.TypeHierarchyForFile
	}
	g, err := explorer.Concurrent(ctx, s.jobs(paths, driver)...)
	return g, nil, err
}

// jobs deals paths round-robin to the configured number of workers.
func (s *Service) jobs(paths []string, driver func(context.Context, *graph.Builder, string, int)) []explorer.Job {
	workers := s.opts.Workers
	if workers > len(paths) {
		workers = len(paths)
	}
	jobs := make([]explorer.Job, 0, workers)
	for w := 0; w < workers; w++ {
		var chunk []string
		for i := w; i < len(paths); i += workers {
			chunk = append(chunk, paths[i])
		}
		jobs = append(jobs, func(ctx context.Context, b *graph.Builder) {
			for _, path := range chunk {
				if ctx.Err() != nil {
					return
				}
				driver(ctx, b, path, len(paths))
			}
		})
	}
	return jobs
}

// Rollup loads a stored file graph, applies the expanded-folder changes,
// remembers the new boundary and returns the rolled-up graph. An empty id
// selects the latest snapshot.
func (s *Service) Rollup(ctx context.Context, id string, expand, collapse []string) (*store.Snapshot, *graph.Graph, error) {
	snap, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	set := rollup.NewExpandedSet(snap.Expanded...)
	set.Add(expand...)
	set.Remove(collapse...)
	snap.Expanded = set.Folders()

	if len(expand) > 0 || len(collapse) > 0 {
		if err := s.store.SetExpanded(ctx, snap.ID, snap.Expanded); err != nil {
			return nil, nil, err
		}
	}
	return snap, rollup.Folders(snap.Graph, snap.Expanded), nil
}

// TreeView selects how a stored file graph is shown through its directory
// tree. Operations apply in field order.
type TreeView struct {
	CollapseAll bool
	Collapse    []string
	Expand      []string
	// ExpandTill reveals a file by expanding its ancestors.
	ExpandTill string
	// Isolate keeps only the nodes under one directory.
	Isolate string
	// Focus is an entry whose neighbors in display order are reported.
	Focus string
}

// TreeResult is a projected graph with the visible tree entries.
type TreeResult struct {
	Snapshot *store.Snapshot
	Graph    *graph.Graph
	Entries  []string
	Prev     string
	Next     string
}

// Directories projects a stored file graph through its directory tree:
// files under each collapsed directory merge into one node for it.
func (s *Service) Directories(ctx context.Context, id string, view TreeView) (*TreeResult, error) {
	snap, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(snap.Graph.Nodes))
	for _, n := range snap.Graph.Nodes {
		if n.Kind == graph.KindFile {
			paths = append(paths, n.DisplayName)
		}
	}
	tree := rollup.NewTree(paths)
	if view.CollapseAll {
		tree.CollapseAll()
	}
	for _, dir := range view.Collapse {
		if err := tree.Collapse(strings.TrimSuffix(dir, "/")); err != nil {
			return nil, err
		}
	}
	for _, dir := range view.Expand {
		if err := tree.Expand(strings.TrimSuffix(dir, "/")); err != nil {
			return nil, err
		}
	}
	if view.ExpandTill != "" {
		if !tree.IsFile(view.ExpandTill) {
			return nil, errors.NewNotFoundError("file %s in snapshot %s", view.ExpandTill, snap.ID)
		}
		tree.ExpandTill(view.ExpandTill)
	}
	if err := tree.Isolate(strings.TrimSuffix(view.Isolate, "/")); err != nil {
		return nil, err
	}

	res := &TreeResult{Snapshot: snap, Graph: tree.Project(snap.Graph), Entries: tree.Linearize()}
	if view.Focus != "" {
		res.Prev = tree.Prev(view.Focus)
		res.Next = tree.Next(view.Focus)
	}
	return res, nil
}

// Hide sets the hidden flag of the named nodes of a stored graph. Names
// match node keys or display names; a name that matches nothing is an error
// and nothing is written.
func (s *Service) Hide(ctx context.Context, id string, names []string, hidden bool) (*store.Snapshot, error) {
	snap, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if snap.Graph.Hide(name, hidden) == 0 {
			return nil, errors.NewNotFoundError("node %s in snapshot %s", name, snap.ID)
		}
	}
	if err := s.store.SetGraph(ctx, snap.ID, snap.Graph); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Service) load(ctx context.Context, id string) (*store.Snapshot, error) {
	if id == "" {
		return s.store.Latest(ctx)
	}
	return s.store.Load(ctx, id)
}
