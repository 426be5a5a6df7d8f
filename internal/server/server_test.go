package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"callgraph/internal/draw"
	"callgraph/internal/explorer"
	"callgraph/internal/graph"
	"callgraph/internal/lsp"
	"callgraph/internal/store"
)

// quietOracle knows no symbols, so every draw yields an empty graph.
type quietOracle struct{}

func (quietOracle) ListSymbols(context.Context, string) ([]lsp.DocumentSymbol, error) {
	return []lsp.DocumentSymbol{}, nil
}
func (quietOracle) PrepareCallHierarchy(context.Context, string, lsp.Position) ([]lsp.HierarchyItem, error) {
	return nil, nil
}
func (quietOracle) PrepareTypeHierarchy(context.Context, string, lsp.Position) ([]lsp.HierarchyItem, error) {
	return nil, nil
}
func (quietOracle) OutgoingCalls(context.Context, lsp.HierarchyItem) ([]lsp.CallHierarchyOutgoingCall, error) {
	return nil, nil
}
func (quietOracle) IncomingCalls(context.Context, lsp.HierarchyItem) ([]lsp.CallHierarchyIncomingCall, error) {
	return nil, nil
}
func (quietOracle) Supertypes(context.Context, lsp.HierarchyItem) ([]lsp.HierarchyItem, error) {
	return nil, nil
}
func (quietOracle) Subtypes(context.Context, lsp.HierarchyItem) ([]lsp.HierarchyItem, error) {
	return nil, nil
}
func (quietOracle) References(context.Context, string, lsp.Position) ([]lsp.Location, error) {
	return nil, nil
}

var _ explorer.Oracle = quietOracle{}

type harness struct {
	session *mcp.ClientSession
	store   *store.Store
	dir     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	nop := zap.NewNop().Sugar()

	st, err := store.Open(filepath.Join(t.TempDir(), "snapshots.db"), nop)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))

	draws := draw.New(quietOracle{}, st, draw.Options{
		Explorer: explorer.Options{Root: dir, Logger: nop},
		Logger:   nop,
	})
	srv := New(draws, Options{Version: "test", Logger: nop})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := srv.mcpServer.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	return &harness{session: cs, store: st, dir: dir}
}

func (h *harness) call(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := h.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestServer_ListsTools(t *testing.T) {
	h := newHarness(t)
	res, err := h.session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"callgraph", "type_hierarchy", "file_hierarchy", "rollup", "list_snapshots", "get_snapshot"}, names)
}

func TestServer_DrawStoresSnapshot(t *testing.T) {
	h := newHarness(t)

	text, isErr := h.call(t, "callgraph", map[string]any{"scope": "file", "target": filepath.Join(h.dir, "main.go")})
	require.False(t, isErr, text)

	var res DrawResult
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.NotEmpty(t, res.SnapshotID)
	assert.Equal(t, "callgraph", res.Kind)

	text, isErr = h.call(t, "get_snapshot", map[string]any{"snapshot_id": res.SnapshotID})
	require.False(t, isErr, text)
	var snap store.Snapshot
	require.NoError(t, json.Unmarshal([]byte(text), &snap))
	assert.Equal(t, res.SnapshotID, snap.ID)

	text, isErr = h.call(t, "list_snapshots", map[string]any{})
	require.False(t, isErr, text)
	var infos []store.Info
	require.NoError(t, json.Unmarshal([]byte(text), &infos))
	assert.Len(t, infos, 1)
}

func TestServer_FileHierarchyReportsReferenceCounts(t *testing.T) {
	h := newHarness(t)

	text, isErr := h.call(t, "file_hierarchy", map[string]any{"scope": "folder", "target": h.dir})
	require.False(t, isErr, text)

	var res DrawResult
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.Equal(t, "filehierarchy", res.Kind)
	require.Len(t, res.Graph.Nodes, 1)
	assert.Equal(t, "main.go", res.Graph.Nodes[0].DisplayName)
}

func TestServer_DrawErrors(t *testing.T) {
	h := newHarness(t)

	text, isErr := h.call(t, "callgraph", map[string]any{"scope": "file", "target": filepath.Join(h.dir, "missing.go")})
	assert.True(t, isErr)
	assert.Contains(t, text, "Draw failed")

	_, isErr = h.call(t, "type_hierarchy", map[string]any{"scope": "symbol", "target": filepath.Join(h.dir, "main.go"), "column": 3})
	assert.True(t, isErr)

	text, isErr = h.call(t, "get_snapshot", map[string]any{"snapshot_id": "nope"})
	assert.True(t, isErr)
	assert.Equal(t, "Snapshot not found.", text)
}

func TestServer_Rollup(t *testing.T) {
	h := newHarness(t)

	text, _ := h.call(t, "list_snapshots", map[string]any{})
	assert.Equal(t, "No snapshots stored.", text)

	b := graph.NewBuilder()
	b.AddEdge(graph.KindFile, "/ws/a/b/x.go", "a/b/x.go", 0, 0, graph.KindFile, "/ws/a/c/y.go", "a/c/y.go", 0, 0)
	g, err := b.Graph()
	require.NoError(t, err)
	id, err := h.store.Save(context.Background(), &store.Snapshot{Kind: "filehierarchy", Seed: "/ws", Graph: g})
	require.NoError(t, err)

	text, isErr := h.call(t, "rollup", map[string]any{"expand": []string{"a/b"}})
	require.False(t, isErr, text)

	var res RollupResult
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.Equal(t, id, res.SnapshotID)
	assert.Equal(t, []string{"a/b"}, res.Expanded)
	var names []string
	for _, n := range res.Graph.Nodes {
		names = append(names, n.DisplayName)
	}
	assert.Equal(t, []string{"a/b/x.go", "a/c/"}, names)
}

func TestServer_Resources(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: guidelinesURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, "rollup")

	res, err = h.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: schemaPrefix + "callgraph"})
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &schema))
	assert.Contains(t, schema["properties"], "target")

	_, err = h.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: schemaPrefix + "unknown"})
	assert.Error(t, err)
}

func TestBuildSchemaMap(t *testing.T) {
	m := buildSchemaMap()
	for _, name := range []string{"callgraph", "type_hierarchy", "file_hierarchy", "rollup", "list_snapshots", "get_snapshot"} {
		assert.Contains(t, m, name)
	}
}
