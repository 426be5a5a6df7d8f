package server

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"callgraph/internal/draw"
	"callgraph/internal/errors"
	"callgraph/internal/graph"
	"callgraph/internal/logger"
	"callgraph/internal/lsp"
	"callgraph/internal/store"
)

// Arguments structs

type DrawArgs struct {
	Scope      string `json:"scope" jsonschema:"Where to start: file, folder or symbol"`
	Target     string `json:"target" jsonschema:"Absolute path of the file or folder to start from"`
	Symbol     string `json:"symbol,omitempty" jsonschema:"Name of a symbol declared in target, for scope symbol"`
	Line       *int   `json:"line,omitempty" jsonschema:"Zero-based line of the symbol, for scope symbol"`
	Column     *int   `json:"column,omitempty" jsonschema:"Zero-based column of the symbol, for scope symbol"`
	FilterPath string `json:"filter_path,omitempty" jsonschema:"Drop edges with an endpoint outside this path"`
}

type FileHierarchyArgs struct {
	Scope      string `json:"scope" jsonschema:"Where to start: file or folder"`
	Target     string `json:"target" jsonschema:"Absolute path of the file or folder to start from"`
	FilterPath string `json:"filter_path,omitempty" jsonschema:"Drop edges with an endpoint outside this path"`
}

type RollupArgs struct {
	SnapshotID string   `json:"snapshot_id,omitempty" jsonschema:"Snapshot to roll up; the latest one when empty"`
	Expand     []string `json:"expand,omitempty" jsonschema:"Workspace-relative folders to show one level deeper"`
	Collapse   []string `json:"collapse,omitempty" jsonschema:"Expanded folders to fold back, with their expanded descendants"`
}

type ListSnapshotsArgs struct{}

type GetSnapshotArgs struct {
	SnapshotID string `json:"snapshot_id" jsonschema:"Id returned by a draw or by list_snapshots"`
}

// DrawResult is returned by the drawing tools.
type DrawResult struct {
	SnapshotID string       `json:"snapshot_id" yaml:"snapshot_id"`
	Kind       string       `json:"kind" yaml:"kind"`
	Graph      *graph.Graph `json:"graph" yaml:"graph"`
	// ReferenceCounts is only set for file hierarchies.
	ReferenceCounts map[string]int `json:"reference_counts,omitempty" yaml:"reference_counts,omitempty"`
	DurationSeconds float64        `json:"duration_seconds" yaml:"duration_seconds"`
}

// RollupResult is returned by the rollup tool.
type RollupResult struct {
	SnapshotID string       `json:"snapshot_id" yaml:"snapshot_id"`
	Expanded   []string     `json:"expanded" yaml:"expanded"`
	Graph      *graph.Graph `json:"graph" yaml:"graph"`
}

func (a DrawArgs) request(kind draw.Kind) (draw.Request, error) {
	req := draw.Request{
		Kind:       kind,
		Scope:      draw.Scope(a.Scope),
		Target:     a.Target,
		Symbol:     a.Symbol,
		FilterPath: a.FilterPath,
	}
	if a.Line != nil {
		pos := lsp.Position{Line: *a.Line}
		if a.Column != nil {
			pos.Character = *a.Column
		}
		req.Position = &pos
	} else if a.Column != nil {
		return req, errors.NewInvalidRequestError("column given without line")
	}
	return req, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "callgraph",
		Description: "Draws the call graph of a file, a folder or a symbol and stores it as a snapshot",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args DrawArgs) (*mcp.CallToolResult, any, error) {
		r, err := args.request(draw.KindCallgraph)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return s.draw(ctx, r), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "type_hierarchy",
		Description: "Draws supertypes and subtypes of a file, a folder or a symbol and stores it as a snapshot",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args DrawArgs) (*mcp.CallToolResult, any, error) {
		r, err := args.request(draw.KindTypeHierarchy)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return s.draw(ctx, r), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "file_hierarchy",
		Description: "Draws which files reference the symbols of a file or folder and stores it as a snapshot",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FileHierarchyArgs) (*mcp.CallToolResult, any, error) {
		return s.draw(ctx, draw.Request{
			Kind:       draw.KindFileHierarchy,
			Scope:      draw.Scope(args.Scope),
			Target:     args.Target,
			FilterPath: args.FilterPath,
		}), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "rollup",
		Description: "Folds a stored file hierarchy into folders, optionally expanding or collapsing folders",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RollupArgs) (*mcp.CallToolResult, any, error) {
		snap, rolled, err := s.draws.Rollup(ctx, args.SnapshotID, args.Expand, args.Collapse)
		if err != nil {
			return errorResult(fmt.Sprintf("Rollup failed: %v", err)), nil, nil
		}
		return s.encoded(RollupResult{SnapshotID: snap.ID, Expanded: snap.Expanded, Graph: rolled}), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_snapshots",
		Description: "Lists stored snapshots, newest first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListSnapshotsArgs) (*mcp.CallToolResult, any, error) {
		infos, err := s.draws.Store().List(ctx)
		if err != nil {
			return errorResult(fmt.Sprintf("Query failed: %v", err)), nil, nil
		}
		if len(infos) == 0 {
			return textResult("No snapshots stored."), nil, nil
		}
		return s.encoded(infos), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_snapshot",
		Description: "Returns a stored snapshot with its graph",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetSnapshotArgs) (*mcp.CallToolResult, any, error) {
		snap, err := s.draws.Store().Load(ctx, args.SnapshotID)
		if err != nil {
			if errors.IsNotFoundError(err) {
				return errorResult("Snapshot not found."), nil, nil
			}
			return errorResult(fmt.Sprintf("Query failed: %v", err)), nil, nil
		}
		return s.encoded(snap), nil, nil
	})
}

func (s *Server) draw(ctx context.Context, req draw.Request) *mcp.CallToolResult {
	start := time.Now()
	snap, err := s.draws.Draw(ctx, req)
	if err != nil {
		s.logger.Warnw("draw failed", logger.FieldRelation, req.Kind, logger.FieldFile, req.Target, logger.FieldError, err)
		return errorResult(fmt.Sprintf("Draw failed: %v", err))
	}
	if snap.ID == "" {
		return errorResult("Draw cancelled before it finished")
	}
	return s.encoded(resultFor(snap, time.Since(start)))
}

func resultFor(snap *store.Snapshot, d time.Duration) DrawResult {
	res := DrawResult{
		SnapshotID:      snap.ID,
		Kind:            snap.Kind,
		Graph:           snap.Graph,
		DurationSeconds: d.Seconds(),
	}
	if snap.Symbols != nil {
		res.ReferenceCounts = snap.Symbols.ReferenceCounts()
	}
	return res
}
