// Command browser-mcp drives a headless Chromium through MCP tools.
package main

import (
	"context"
	"path/filepath"

	"github.com/joss/mcpd/internal/browser"
	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/daemon"
	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/metrics"
)

var version = "0.1.0"

func main() {
	daemon.Daemon{
		Name:    "browser-mcp",
		Version: version,
		Short:   "MCP tools for browser automation",
		Specs:   browser.Specs,
		Build: func(_ context.Context, cfg *config.Config, m *metrics.Metrics) (dispatch.Toolset, error) {
			shots := filepath.Join(cfg.DataDir, "screenshots")
			return browser.New(cfg.Browser, browser.NewRodEngine(), shots, m), nil
		},
	}.Execute()
}
