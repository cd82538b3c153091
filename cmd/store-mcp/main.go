// Command store-mcp serves a local namespaced key-value store as MCP tools.
package main

import (
	"context"

	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/daemon"
	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/kvstore"
	"github.com/joss/mcpd/internal/metrics"
)

var version = "0.1.0"

func main() {
	daemon.Daemon{
		Name:    "store-mcp",
		Version: version,
		Short:   "MCP tools for a local key-value store",
		Specs:   kvstore.Specs,
		Build: func(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (dispatch.Toolset, error) {
			store, err := kvstore.Open(ctx, cfg.Store.Path)
			if err != nil {
				return nil, err
			}
			return kvstore.New(store, m), nil
		},
	}.Execute()
}
