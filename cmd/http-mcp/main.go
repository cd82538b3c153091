// Command http-mcp serves an HTTP client with request history as MCP tools.
package main

import (
	"context"

	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/daemon"
	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/httpclient"
	"github.com/joss/mcpd/internal/metrics"
)

var version = "0.1.0"

func main() {
	daemon.Daemon{
		Name:    "http-mcp",
		Version: version,
		Short:   "MCP tools for sending HTTP requests",
		Specs:   httpclient.Specs,
		Build:   build,
	}.Execute()
}

func build(_ context.Context, cfg *config.Config, m *metrics.Metrics) (dispatch.Toolset, error) {
	if err := config.EnsureDir(cfg.HTTP.HistoryPath); err != nil {
		return nil, err
	}
	history, err := httpclient.OpenHistory(cfg.HTTP.HistoryPath, cfg.HTTP.HistoryLimit)
	if err != nil {
		return nil, err
	}
	return httpclient.New(cfg.HTTP, httpclient.NewClient(cfg.HTTP, nil), history, m), nil
}
