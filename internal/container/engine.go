// Package container exposes a Docker/Podman engine as tools. Every handler
// shells out through an exec.Runner and forwards engine stderr unchanged.
package container

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joss/mcpd/internal/exec"
	"github.com/joss/mcpd/internal/logging"
	"github.com/joss/mcpd/internal/metrics"
)

// Runtime represents detected container engine.
type Runtime string

const (
	RuntimeDocker Runtime = "docker"
	RuntimePodman Runtime = "podman"
	RuntimeNone   Runtime = ""
)

// ErrNoRuntime is returned when neither docker nor podman is installed.
var ErrNoRuntime = errors.New("no container runtime found (install docker or podman)")

// Detect picks the engine binary. An explicit override must be on PATH;
// "auto" prefers docker and falls back to podman.
func Detect(r exec.Runner, override string) (Runtime, error) {
	switch override {
	case "docker", "podman":
		if _, err := r.LookPath(override); err != nil {
			return RuntimeNone, fmt.Errorf("container runtime %s: %w", override, err)
		}
		return Runtime(override), nil
	case "", "auto":
	default:
		return RuntimeNone, fmt.Errorf("unknown container runtime %q", override)
	}

	for _, rt := range []Runtime{RuntimeDocker, RuntimePodman} {
		if _, err := r.LookPath(string(rt)); err == nil {
			return rt, nil
		}
	}
	return RuntimeNone, ErrNoRuntime
}

// Engine runs engine subcommands.
type Engine struct {
	runner  exec.Runner
	runtime Runtime
	metrics *metrics.Metrics
}

// NewEngine creates an engine bound to rt.
func NewEngine(r exec.Runner, rt Runtime, m *metrics.Metrics) *Engine {
	return &Engine{runner: r, runtime: rt, metrics: m}
}

// Runtime returns the engine binary in use.
func (e *Engine) Runtime() Runtime {
	return e.runtime
}

// Run executes one subcommand and returns its stdout. A non-zero exit is an
// error whose text is the engine's stderr, prefixed with the subcommand.
func (e *Engine) Run(ctx context.Context, args ...string) (exec.Result, error) {
	return e.RunInDir(ctx, "", args...)
}

// RunInDir is Run with the engine's working directory set to dir, so
// relative paths in args resolve against it. An empty dir inherits ours.
func (e *Engine) RunInDir(ctx context.Context, dir string, args ...string) (exec.Result, error) {
	if e.runtime == RuntimeNone {
		return exec.Result{}, ErrNoRuntime
	}

	op := string(e.runtime) + " " + subcommand(args)
	logging.FromContext(ctx, "container").Debug("engine_command", map[string]any{
		"runtime": string(e.runtime),
		"args":    strings.Join(args, " "),
		"dir":     dir,
	})

	var res exec.Result
	var err error
	if dir == "" {
		res, err = e.runner.Run(ctx, string(e.runtime), args...)
	} else {
		res, err = e.runner.RunInDir(ctx, dir, string(e.runtime), args...)
	}
	e.metrics.RecordExternal(op, err)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Output runs a subcommand and returns trimmed stdout.
func (e *Engine) Output(ctx context.Context, args ...string) (string, error) {
	res, err := e.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	return res.StdoutString(), nil
}

// subcommand names the operation for errors and metrics: "ps", "network ls".
func subcommand(args []string) string {
	if len(args) == 0 {
		return ""
	}
	switch args[0] {
	case "network", "volume", "image", "container", "system":
		if len(args) > 1 {
			return args[0] + " " + args[1]
		}
	}
	return args[0]
}
