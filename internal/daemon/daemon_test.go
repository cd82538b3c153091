package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/metrics"
	"github.com/joss/mcpd/internal/runtime"
	"github.com/joss/mcpd/internal/tool"
)

type echoToolset struct {
	closed atomic.Int32
}

func echoSpecs() []tool.Spec {
	return []tool.Spec{
		{
			Name:        "echo",
			Description: "Echo a message",
			Parameters: []tool.Field{
				{Name: "message", Param: tool.String{}, Required: true},
			},
		},
		{Name: "wait", Description: "Wait for a long time", Slow: true},
	}
}

func (e *echoToolset) Specs() []tool.Spec { return echoSpecs() }

func (e *echoToolset) Handlers() dispatch.Table {
	return dispatch.Table{
		"echo": func(ctx context.Context, args tool.Args) (*tool.Result, error) {
			return tool.Text(args.String("message")), nil
		},
		"wait": func(ctx context.Context, args tool.Args) (*tool.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

func (e *echoToolset) Close(context.Context) error {
	e.closed.Add(1)
	return nil
}

func testDaemon(ts *echoToolset) Daemon {
	return Daemon{
		Name:    "echo-mcp",
		Version: "1.2.3",
		Specs:   echoSpecs,
		Build: func(context.Context, *config.Config, *metrics.Metrics) (dispatch.Toolset, error) {
			return ts, nil
		},
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	return cfg
}

func responses(t *testing.T, out string) []map[string]any {
	t.Helper()
	var res []map[string]any
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		res = append(res, m)
	}
	return res
}

func TestServeAnswersUntilEOF(t *testing.T) {
	ts := &echoToolset{}
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"test","version":"0"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":"c-3","method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`,
	}, "\n") + "\n"
	var out bytes.Buffer

	err := testDaemon(ts).Serve(context.Background(), testConfig(t), runtime.NewShutdownManager(time.Second), strings.NewReader(in), &out)
	require.NoError(t, err)

	res := responses(t, out.String())
	require.Len(t, res, 3)

	info := res[0]["result"].(map[string]any)["serverInfo"].(map[string]any)
	assert.Equal(t, "echo-mcp", info["name"])
	assert.Equal(t, "1.2.3", info["version"])

	tools := res[1]["result"].(map[string]any)["tools"].([]any)
	require.Len(t, tools, 2)
	assert.Equal(t, "echo", tools[0].(map[string]any)["name"])

	assert.Equal(t, "c-3", res[2]["id"])
	content := res[2]["result"].(map[string]any)["content"].([]any)
	assert.Equal(t, "hi", content[0].(map[string]any)["text"])

	assert.Equal(t, int32(1), ts.closed.Load())
}

func TestServeStopsOnCancel(t *testing.T) {
	ts := &echoToolset{}
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- testDaemon(ts).Serve(ctx, testConfig(t), runtime.NewShutdownManager(time.Second), pr, io.Discard)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, int32(1), ts.closed.Load())
}

func TestServeBuildFailure(t *testing.T) {
	d := testDaemon(nil)
	d.Build = func(context.Context, *config.Config, *metrics.Metrics) (dispatch.Toolset, error) {
		return nil, errors.New("no container runtime found (install docker or podman)")
	}

	err := d.Serve(context.Background(), testConfig(t), runtime.NewShutdownManager(time.Second), strings.NewReader(""), io.Discard)
	require.Error(t, err)
	assert.Equal(t, "start echo-mcp: no container runtime found (install docker or podman)", err.Error())
}

func TestServeMetricsBindFailure(t *testing.T) {
	ts := &echoToolset{}
	cfg := testConfig(t)
	cfg.MetricsAddr = "not-an-address"

	err := testDaemon(ts).Serve(context.Background(), cfg, runtime.NewShutdownManager(time.Second), strings.NewReader(""), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics listen not-an-address")
	assert.Equal(t, int32(1), ts.closed.Load())
}

func TestServeWithMetrics(t *testing.T) {
	ts := &echoToolset{}
	cfg := testConfig(t)
	cfg.MetricsAddr = "127.0.0.1:0"
	in := `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"
	var out bytes.Buffer

	err := testDaemon(ts).Serve(context.Background(), cfg, runtime.NewShutdownManager(time.Second), strings.NewReader(in), &out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, strings.TrimSpace(out.String()))
	assert.Equal(t, int32(1), ts.closed.Load())
}

func TestPrintTools(t *testing.T) {
	cfg := testConfig(t)
	d := testDaemon(nil)

	var table bytes.Buffer
	require.NoError(t, d.PrintTools(&table, cfg, false))
	text := table.String()
	assert.Contains(t, text, "echo-mcp")
	assert.Contains(t, text, "2 tools")
	assert.Contains(t, text, "Echo a message")
	assert.Contains(t, text, "30s")
	assert.Contains(t, text, "5m0s")

	var raw bytes.Buffer
	require.NoError(t, d.PrintTools(&raw, cfg, true))
	var payload struct {
		Tools []struct {
			Name        string         `json:"name"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(raw.Bytes(), &payload))
	require.Len(t, payload.Tools, 2)
	assert.Equal(t, "echo", payload.Tools[0].Name)
	assert.Equal(t, "wait", payload.Tools[1].Name)
	assert.Equal(t, []any{"message"}, payload.Tools[0].InputSchema["required"])
}

func TestToolsCommand(t *testing.T) {
	t.Setenv("MCPD_DATA_DIR", t.TempDir())
	root := testDaemon(nil).Command()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"tools", "--json", "--log-level", "debug"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"name": "echo"`)

	root.SetArgs([]string{"tools", "--config", "/does/not/exist.yaml"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

// workToolset runs one call that takes a while but honors ctx.
type workToolset struct {
	started chan struct{}
	closed  atomic.Int32
}

func (w *workToolset) Specs() []tool.Spec {
	return []tool.Spec{{Name: "work", Description: "Work for a moment"}}
}

func (w *workToolset) Handlers() dispatch.Table {
	return dispatch.Table{
		"work": func(ctx context.Context, args tool.Args) (*tool.Result, error) {
			close(w.started)
			select {
			case <-time.After(300 * time.Millisecond):
				return tool.Text("finished"), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

func (w *workToolset) Close(context.Context) error {
	w.closed.Add(1)
	return nil
}

func TestSignalDrainsInFlightCall(t *testing.T) {
	ts := &workToolset{started: make(chan struct{})}
	d := Daemon{
		Name:    "work-mcp",
		Version: "0.0.1",
		Specs:   ts.Specs,
		Build: func(context.Context, *config.Config, *metrics.Metrics) (dispatch.Toolset, error) {
			return ts, nil
		},
	}
	pr, pw := io.Pipe()
	defer pw.Close()
	var out bytes.Buffer

	sm := runtime.NewShutdownManager(5 * time.Second)
	done := make(chan error, 1)
	go func() {
		done <- d.Serve(sm.Context(), testConfig(t), sm, pr, &out)
	}()

	_, err := io.WriteString(pw, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"work","arguments":{}}}`+"\n")
	require.NoError(t, err)

	select {
	case <-ts.started:
	case <-time.After(5 * time.Second):
		t.Fatal("call never started")
	}
	time.Sleep(50 * time.Millisecond)
	go func() { _ = sm.Shutdown("signal terminated") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}

	res := responses(t, out.String())
	require.Len(t, res, 1)
	result := res[0]["result"].(map[string]any)
	assert.NotEqual(t, true, result["isError"])
	content := result["content"].([]any)
	assert.Equal(t, "finished", content[0].(map[string]any)["text"])
	assert.Equal(t, "signal terminated", sm.Reason())
	assert.Equal(t, int32(1), ts.closed.Load())
}
