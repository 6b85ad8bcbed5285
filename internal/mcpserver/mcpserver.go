// Package mcpserver exposes the file_writer tool over the Model Context Protocol
// so an external agent CLI can materialize files while it runs.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/brightfame/crewgen/internal/materialize"
	"github.com/brightfame/crewgen/internal/toolset"
)

// New returns an MCP server whose file_writer tool writes through m.
func New(m *materialize.Materializer, version string) *server.MCPServer {
	s := server.NewMCPServer("crewgen", version, server.WithToolCapabilities(false))
	s.AddTool(toolFromSpec(toolset.FileWriterSpec), fileWriterHandler(m))
	return s
}

// ServeStdio serves s on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func toolFromSpec(spec toolset.Spec) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(spec.Description)}
	for _, p := range spec.Parameters {
		propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(p.Name, propOpts...))
	}
	return mcp.NewTool(spec.Name, opts...)
}

// fileWriterHandler reports rejected and failed writes as tool errors so the
// model sees them; the protocol call itself still succeeds.
func fileWriterHandler(m *materialize.Materializer) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("filepath")
		if err != nil {
			// Same alias the in-process file_writer accepts.
			if path = req.GetString("path", ""); path == "" {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		out, err := toolset.WriteResult(m.Write(path, content))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}
