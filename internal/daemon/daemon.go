// Package daemon turns a toolset into a stdio MCP process. It loads the
// configuration, sets up logging and metrics, serves frames until stdin
// closes or a signal arrives, then shuts the toolset down.
package daemon

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/logging"
	"github.com/joss/mcpd/internal/metrics"
	"github.com/joss/mcpd/internal/protocol"
	"github.com/joss/mcpd/internal/runtime"
	"github.com/joss/mcpd/internal/tool"
)

// BuildFunc opens the daemon's external clients and returns its toolset.
type BuildFunc func(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (dispatch.Toolset, error)

// Daemon describes one MCP tool daemon.
type Daemon struct {
	Name    string
	Version string
	Short   string
	// Specs lists the tools without opening any client; used by `tools`.
	Specs func() []tool.Spec
	Build BuildFunc
}

type flags struct {
	configPath  string
	logLevel    string
	metricsAddr string
}

// Command builds the cobra root command.
func (d Daemon) Command() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           d.Name,
		Short:         d.Short,
		Version:       d.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			return d.run(cfg)
		},
	}

	root.PersistentFlags().StringVar(&f.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address")

	root.AddCommand(d.toolsCmd(f))
	return root
}

// Execute runs the command line and exits non-zero on failure.
func (d Daemon) Execute() {
	if err := d.Command().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (f *flags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	return cfg, nil
}

func (d Daemon) run(cfg *config.Config) error {
	err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
		Fields: map[string]any{"daemon": d.Name},
	})
	if err != nil {
		return err
	}

	shutdown := runtime.NewShutdownManager(cfg.ShutdownTimeout)
	shutdown.ListenForSignals()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		logging.New("daemon").Info("stdin_is_terminal", map[string]any{
			"hint": "expects newline-delimited JSON-RPC frames on stdin",
		})
	}
	return d.Serve(shutdown.Context(), cfg, shutdown, os.Stdin, os.Stdout)
}

// Serve builds the toolset and answers frames from in until it ends, ctx is
// cancelled or the metrics server fails. Cleanup runs through shutdown
// before Serve returns.
func (d Daemon) Serve(ctx context.Context, cfg *config.Config, shutdown *runtime.ShutdownManager, in io.Reader, out io.Writer) error {
	log := logging.New("daemon")
	m := metrics.New(d.Name)

	ts, err := d.Build(ctx, cfg, m)
	if err != nil {
		return fmt.Errorf("start %s: %w", d.Name, err)
	}

	disp, err := dispatch.FromToolset(ts,
		dispatch.WithDefaultTimeout(cfg.DefaultTimeout),
		dispatch.WithSlowTimeout(cfg.SlowTimeout),
		dispatch.WithMetrics(m),
		dispatch.WithLogger(logging.New("dispatch")),
	)
	if err != nil {
		_ = ts.Close(ctx)
		return fmt.Errorf("wire %s: %w", d.Name, err)
	}
	shutdown.Register("dispatcher", disp.Shutdown)

	var msrv *metrics.Server
	if cfg.MetricsAddr != "" {
		msrv = metrics.NewServer(cfg.MetricsAddr, m)
		if err := msrv.Listen(); err != nil {
			_ = shutdown.Shutdown("startup failed")
			return err
		}
		shutdown.Register("metrics", msrv.Stop)
		log.Info("metrics_listening", map[string]any{"addr": msrv.Addr()})
	}

	log.Info("daemon_started", map[string]any{
		"version":  d.Version,
		"tools":    disp.Registry().Len(),
		"data_dir": cfg.DataDir,
	})

	server := protocol.NewServerWithIO(protocol.Info{Name: d.Name, Version: d.Version}, disp, in, out)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer shutdown.Shutdown("input closed")
		return server.Serve(gctx)
	})
	if msrv != nil {
		g.Go(msrv.Serve)
	}

	serveErr := g.Wait()
	if err := shutdown.Shutdown("serve ended"); err != nil {
		log.Warn("shutdown_incomplete", nil, err)
	}
	log.Info("daemon_stopped", map[string]any{"reason": shutdown.Reason()})
	return serveErr
}
