// Package mcpserver exposes page composition as MCP tools.
package mcpserver

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with the page tools registered.
func New(svc *PageService, name, version string) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("compose_page",
		mcp.WithDescription("Compose a page: resolve its includes, run its queries and return the output text, tiles and menu flag as JSON. Failures are reported in the error field."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Absolute page name, e.g. /docs/intro")),
	), svc.ComposePage)

	s.AddTool(mcp.NewTool("page_tree",
		mcp.WithDescription("Return the tree of page names under a prefix as JSON."),
		mcp.WithString("prefix", mcp.Description("Name prefix; defaults to /")),
	), svc.PageTree)

	s.AddTool(mcp.NewTool("page_dependents",
		mcp.WithDescription("List the pages that include the given page directly. These are the pages whose output changes when it changes."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Absolute page name")),
	), svc.PageDependents)

	return s
}

// ServeStdio runs the server on stdin/stdout until ctx is cancelled or the
// input is closed.
func ServeStdio(ctx context.Context, s *server.MCPServer) error {
	return server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
}
