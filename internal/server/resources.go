package server

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"callgraph/internal/errors"
)

const (
	guidelinesURI = "callgraph://usage-guidelines"
	schemaPrefix  = "callgraph://schemas/"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         guidelinesURI,
		Name:        "Usage Guidelines",
		Description: "How to use the callgraph tools",
		MIMEType:    "text/markdown",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      guidelinesURI,
					MIMEType: "text/markdown",
					Text:     s.systemPrompt,
				},
			},
		}, nil
	})

	schemaMap := buildSchemaMap()

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: schemaPrefix + "{tool_name}",
		Name:        "Tool Schema",
		Description: "JSON schema for the named tool's arguments",
		MIMEType:    "application/schema+json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		toolName := strings.TrimPrefix(uri, schemaPrefix)
		schemaJSON, ok := schemaMap[toolName]
		if !ok {
			return nil, errors.NewNotFoundError("tool schema %q", toolName)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/schema+json",
					Text:     schemaJSON,
				},
			},
		}, nil
	})
}

// buildSchemaMap maps each tool name to the JSON schema of its arguments.
func buildSchemaMap() map[string]string {
	m := make(map[string]string)
	addSchema[DrawArgs](m, "callgraph")
	addSchema[DrawArgs](m, "type_hierarchy")
	addSchema[FileHierarchyArgs](m, "file_hierarchy")
	addSchema[RollupArgs](m, "rollup")
	addSchema[ListSnapshotsArgs](m, "list_snapshots")
	addSchema[GetSnapshotArgs](m, "get_snapshot")
	return m
}

func addSchema[T any](m map[string]string, name string) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return
	}
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return
	}
	m[name] = string(schemaJSON)
}
