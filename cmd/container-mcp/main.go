// Command container-mcp serves a Docker or Podman engine as MCP tools.
package main

import (
	"context"

	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/container"
	"github.com/joss/mcpd/internal/daemon"
	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/exec"
	"github.com/joss/mcpd/internal/logging"
	"github.com/joss/mcpd/internal/metrics"
)

var version = "0.1.0"

func main() {
	daemon.Daemon{
		Name:    "container-mcp",
		Version: version,
		Short:   "MCP tools for the local container engine",
		Specs:   container.Specs,
		Build:   build,
	}.Execute()
}

func build(_ context.Context, cfg *config.Config, m *metrics.Metrics) (dispatch.Toolset, error) {
	runner := exec.NewOSRunner()
	rt, err := container.Detect(runner, cfg.Container.Runtime)
	if err != nil {
		return nil, err
	}
	logging.New("container").Info("runtime_detected", map[string]any{"runtime": string(rt)})
	return container.New(container.NewEngine(runner, rt, m)), nil
}
