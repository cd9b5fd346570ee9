package cli

import (
	"context"

	"github.com/runnerr0/browsinglab/internal/mcpserver"
)

// Execute implements the go-flags Commander interface for MCPCommand.
func (c *MCPCommand) Execute(args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	e.logger.Info("serving MCP tools", "archive", e.archive.Path())
	s := mcpserver.New(e.reader, mcpserver.Options{
		Version:     c.version,
		SearchLimit: e.cfg.Search.DefaultLimit,
	})
	return mcpserver.ServeStdio(s)
}
