package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"callgraph/internal/errors"
	"callgraph/internal/graph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "snapshots.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleGraph(t *testing.T, targets ...string) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	for _, target := range targets {
		b.AddEdge(graph.KindFile, "/ws/a.go", "a.go", 0, 0, graph.KindFile, "/ws/"+target, target, 0, 0)
	}
	g, err := b.Graph()
	require.NoError(t, err)
	return g
}

func TestStore_SaveLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := sampleGraph(t, "b.go", "c.go")
	line := 3
	g.Edges[0].Snippets = []graph.Snippet{{Line: &line, Text: "b()", DisplayName: "a"}}
	side := &graph.SymbolsAndReferences{
		Symbols:    []graph.Symbol{{ID: "s1", Key: "/ws/a.go|A", Name: "A", FilePath: "/ws/a.go", Kind: "Function"}},
		References: []graph.Reference{},
	}

	id, err := s.Save(ctx, &Snapshot{Kind: "filehierarchy", Seed: "/ws", Graph: g, Symbols: side})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	loaded, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "filehierarchy", loaded.Kind)
	assert.Equal(t, "/ws", loaded.Seed)
	assert.Equal(t, g.Nodes, loaded.Graph.Nodes)
	assert.Equal(t, g.Edges, loaded.Graph.Edges)
	assert.Equal(t, side.Symbols, loaded.Symbols.Symbols)
	assert.Empty(t, loaded.Expanded)
	assert.WithinDuration(t, time.Now(), loaded.CreatedAt, time.Minute)
}

func TestStore_SaveDeduplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Rebuilt graphs get fresh ids but the same content.
	first, err := s.Save(ctx, &Snapshot{Kind: "callgraph", Seed: "/ws", Graph: sampleGraph(t, "b.go")})
	require.NoError(t, err)
	second, err := s.Save(ctx, &Snapshot{Kind: "callgraph", Seed: "/ws", Graph: sampleGraph(t, "b.go")})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := s.Save(ctx, &Snapshot{Kind: "typehierarchy", Seed: "/ws", Graph: sampleGraph(t, "b.go")})
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	infos, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestStore_RedrawBecomesLatest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.Save(ctx, &Snapshot{Kind: "callgraph", Seed: "a.go", Graph: sampleGraph(t, "b.go"), CreatedAt: time.Now().Add(-2 * time.Minute)})
	require.NoError(t, err)
	_, err = s.Save(ctx, &Snapshot{Kind: "callgraph", Seed: "b.go", Graph: sampleGraph(t, "c.go"), CreatedAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)

	redraw := &Snapshot{Kind: "callgraph", Seed: "a.go", Graph: sampleGraph(t, "b.go")}
	id, err := s.Save(ctx, redraw)
	require.NoError(t, err)
	assert.Equal(t, a, id)
	assert.Equal(t, a, redraw.ID)
	assert.False(t, redraw.CreatedAt.IsZero())

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, a, latest.ID)
	assert.Equal(t, "a.go", latest.Seed)
	assert.Equal(t, latest.Graph.Nodes, redraw.Graph.Nodes, "the returned graph carries the stored ids")
}

func TestStore_ListLatestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := time.Now().Add(-time.Hour)
	oldID, err := s.Save(ctx, &Snapshot{Kind: "callgraph", Seed: "old", Graph: sampleGraph(t, "b.go"), CreatedAt: older})
	require.NoError(t, err)
	newID, err := s.Save(ctx, &Snapshot{Kind: "callgraph", Seed: "new", Graph: sampleGraph(t, "b.go", "c.go")})
	require.NoError(t, err)

	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, newID, infos[0].ID)
	assert.Equal(t, 3, infos[0].NodeCount)
	assert.Equal(t, 2, infos[0].EdgeCount)

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, newID, latest.ID)

	require.NoError(t, s.Delete(ctx, newID))
	latest, err = s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, oldID, latest.ID)

	assert.True(t, errors.IsNotFoundError(s.Delete(ctx, newID)))
	_, err = s.Load(ctx, newID)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStore_SetExpanded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, &Snapshot{Kind: "filehierarchy", Seed: "/ws", Graph: sampleGraph(t, "b.go")})
	require.NoError(t, err)

	require.NoError(t, s.SetExpanded(ctx, id, []string{"src/app", "src"}))
	loaded, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app", "src"}, loaded.Expanded)

	assert.True(t, errors.IsNotFoundError(s.SetExpanded(ctx, "missing", nil)))
}

func TestStore_SetGraph(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := sampleGraph(t, "b.go")
	id, err := s.Save(ctx, &Snapshot{Kind: "callgraph", Seed: "/ws", Graph: g})
	require.NoError(t, err)

	g.Hide("b.go", true)
	require.NoError(t, s.SetGraph(ctx, id, g))
	loaded, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.True(t, loaded.Graph.Nodes[1].Hidden)

	assert.True(t, errors.IsNotFoundError(s.SetGraph(ctx, "missing", g)))
}

func TestStore_EmptyStore(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Latest(context.Background())
	assert.True(t, errors.IsNotFoundError(err))

	infos, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)

	_, err = s.Save(context.Background(), &Snapshot{Kind: "callgraph"})
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestDigest_IgnoresIDs(t *testing.T) {
	a := sampleGraph(t, "b.go", "c.go")
	b := sampleGraph(t, "c.go", "b.go")
	assert.Equal(t, Digest("k", "s", a), Digest("k", "s", b))
	assert.NotEqual(t, Digest("k", "s", a), Digest("k", "other", a))
}
