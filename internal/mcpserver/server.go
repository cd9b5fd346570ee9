// Package mcpserver exposes an open archive as read-only MCP tools: page
// search, entity search, entity statistics, search queries and archive
// status.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/runnerr0/browsinglab/internal/query"
)

// Options configures New.
type Options struct {
	Version string
	// SearchLimit is the default result count of search tools.
	SearchLimit int
}

// New creates the MCP server with every tool registered.
func New(r *query.Reader, opts Options) *server.MCPServer {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 10
	}

	s := server.NewMCPServer(
		"browsinglab",
		opts.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Read-only access to a Browsing Lab archive of visited pages. "+
			"Use search_pages for full-text search, search_entities to find people, places and "+
			"organisations, and archive_status for counts."),
	)

	searchTool := NewSearchTool(r, opts.SearchLimit)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	entityTool := NewEntitySearchTool(r, opts.SearchLimit)
	s.AddTool(entityTool.Definition(), entityTool.Handle)

	statsTool := NewEntityStatsTool(r)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	queriesTool := NewQueriesTool(r, opts.SearchLimit)
	s.AddTool(queriesTool.Definition(), queriesTool.Handle)

	statusTool := NewStatusTool(r)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	return s
}

// ServeStdio blocks serving s on stdin and stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
