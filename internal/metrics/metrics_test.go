package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallCounters(t *testing.T) {
	m := New("test-mcp")

	m.CallStarted()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inFlight))

	m.CallEnded()
	m.ObserveCall("list_containers", "ok", 20*time.Millisecond)
	m.ObserveCall("list_containers", "validation_error", 0)
	m.ObserveCall("pull_image", "timeout", time.Second)

	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.calls.WithLabelValues("list_containers", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.calls.WithLabelValues("list_containers", "validation_error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.calls.WithLabelValues("pull_image", "timeout")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestRecordExternal(t *testing.T) {
	m := New("test-mcp")
	m.RecordExternal("docker ps", nil)
	m.RecordExternal("docker ps", errors.New("daemon not running"))
	m.RecordExternal("docker ps", nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.external.WithLabelValues("docker ps", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.external.WithLabelValues("docker ps", "error")))
}

func TestServerEndpoints(t *testing.T) {
	m := New("test-mcp")
	m.ObserveCall("store_get", "ok", time.Millisecond)

	s := NewServer("127.0.0.1:0", m)
	require.NoError(t, s.Listen())

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, s.Stop(ctx))
		require.NoError(t, <-done)
	})

	base := "http://" + s.Addr()

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()

	text := string(body)
	assert.True(t, strings.Contains(text, `mcpd_tool_calls_total{daemon="test-mcp",outcome="ok",tool="store_get"} 1`), text)
	assert.Contains(t, text, "mcpd_dispatcher_in_flight")
	assert.Contains(t, text, "mcpd_uptime_seconds")
}

func TestServerListenError(t *testing.T) {
	s := NewServer("256.0.0.1:bad", New("x"))
	assert.Error(t, s.Listen())
}
