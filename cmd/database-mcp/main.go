// Command database-mcp serves one PostgreSQL, MySQL or SQLite connection as
// MCP tools.
package main

import (
	"context"

	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/daemon"
	"github.com/joss/mcpd/internal/database"
	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/metrics"
)

var version = "0.1.0"

func main() {
	daemon.Daemon{
		Name:    "database-mcp",
		Version: version,
		Short:   "MCP tools for relational databases",
		Specs:   database.Specs,
		Build: func(_ context.Context, cfg *config.Config, m *metrics.Metrics) (dispatch.Toolset, error) {
			return database.New(cfg.Database, m), nil
		},
	}.Execute()
}
