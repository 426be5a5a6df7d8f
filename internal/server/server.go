// Package server exposes graph drawing and rollup as MCP tools over stdio.
package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"callgraph/internal/draw"
	"callgraph/internal/logger"
	"callgraph/internal/render"
)

const usageGuidelines = `# callgraph

Draws code relation graphs by asking the workspace language server.

- Use "callgraph" for who-calls-whom, "type_hierarchy" for supertypes and
  subtypes, and "file_hierarchy" for which files reference which.
- Scope "symbol" walks the relation recursively from one symbol. Give either
  "symbol" (a name declared in target) or "line" and "column" (zero-based).
- Scopes "file" and "folder" record one level per declared symbol.
- Every drawn graph is stored as a snapshot. "rollup" folds a stored file
  hierarchy into folders without asking the language server again; pass
  "expand" or "collapse" to move the folder boundary.
- Node ids are opaque. Edge weights count how many relations were folded
  into the edge.
`

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	// Format encodes tool results. Defaults to JSON.
	Format render.Format
	Logger *zap.SugaredLogger
}

// Server is the MCP front end of a draw.Service.
type Server struct {
	mcpServer    *mcp.Server
	draws        *draw.Service
	format       render.Format
	systemPrompt string
	logger       *zap.SugaredLogger
}

// New creates a Server with every tool and resource registered.
func New(draws *draw.Service, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "callgraph"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Format == "" {
		opts.Format = render.FormatJSON
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("server")
	}

	s := &Server{
		mcpServer: mcp.NewServer(
			&mcp.Implementation{Name: opts.Name, Version: opts.Version},
			&mcp.ServerOptions{Instructions: usageGuidelines},
		),
		draws:        draws,
		format:       opts.Format,
		systemPrompt: usageGuidelines,
		logger:       log,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves over stdin and stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Infow("serving over stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// encoded renders v in the server's format, falling back to an error result.
func (s *Server) encoded(v interface{}) *mcp.CallToolResult {
	text, err := render.String(s.format, v)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(text)
}
