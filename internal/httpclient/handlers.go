package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/logging"
	"github.com/joss/mcpd/internal/metrics"
	"github.com/joss/mcpd/internal/render"
	"github.com/joss/mcpd/internal/tool"
)

// Toolset is the http-mcp tool table.
type Toolset struct {
	client  *Client
	history *History
	cfg     config.HTTPConfig
	metrics *metrics.Metrics
}

// New creates a toolset over client and history.
func New(cfg config.HTTPConfig, client *Client, history *History, m *metrics.Metrics) *Toolset {
	return &Toolset{client: client, history: history, cfg: cfg, metrics: m}
}

// Specs implements dispatch.Toolset.
func (t *Toolset) Specs() []tool.Spec { return Specs() }

// Close implements dispatch.Toolset.
func (t *Toolset) Close(context.Context) error {
	return t.history.Close()
}

// Handlers implements dispatch.Toolset.
func (t *Toolset) Handlers() dispatch.Table {
	return dispatch.Table{
		"send_http_request":     t.send,
		"replay_request":        t.replay,
		"list_request_history":  t.listHistory,
		"clear_request_history": t.clearHistory,
		"health_check":          t.healthCheck,
	}
}

func requestFromArgs(args tool.Args) Request {
	r := Request{
		Method:          args.String("method"),
		URL:             args.String("url"),
		Headers:         args.StringMap("headers"),
		Query:           args.StringMap("query"),
		Body:            args.String("body"),
		JSON:            args["json"],
		Timeout:         seconds(args.Float("timeout_seconds")),
		FollowRedirects: args.Bool("follow_redirects"),
	}
	if auth := args.Object("auth"); auth != nil {
		r.Auth = Auth{
			Type:     auth.String("type"),
			Username: auth.String("username"),
			Password: auth.String("password"),
			Token:    auth.String("token"),
			Header:   auth.String("header"),
			Value:    auth.String("value"),
		}
	}
	return r
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (t *Toolset) send(ctx context.Context, args tool.Args) (*tool.Result, error) {
	return t.do(ctx, requestFromArgs(args), "")
}

func (t *Toolset) replay(ctx context.Context, args tool.Args) (*tool.Result, error) {
	e, err := t.history.Get(args.String("id"))
	if err != nil {
		return nil, err
	}
	r, err := t.history.Original(e)
	if err != nil {
		return nil, err
	}
	return t.do(ctx, r, e.ID)
}

// do sends r and records it. A response with any status is a successful call.
func (t *Toolset) do(ctx context.Context, r Request, replayOf string) (*tool.Result, error) {
	log := logging.FromContext(ctx, "http")

	resp, err := t.client.Do(ctx, r)
	t.metrics.RecordExternal("request", err)

	entry := &Entry{Request: r, ReplayOf: replayOf}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Status = resp.Status
		entry.Duration = resp.Duration
		entry.Size = resp.Size
	}
	if herr := t.history.Add(entry); herr != nil {
		log.Warn("history_write_failed", map[string]any{"url": r.URL}, herr)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("response", map[string]any{"url": r.URL, "status": resp.Status, "duration_ms": resp.Duration.Milliseconds()})

	b := render.NewBuilder()
	b.Println("%s %s", resp.Proto, resp.Line)
	b.Line()
	b.KV("Request", methodOf(r)+" "+r.URL)
	b.KV("Duration", render.FormatDuration(resp.Duration))
	b.KV("History id", entry.ID)
	if replayOf != "" {
		b.KV("Replay of", replayOf)
	}

	b.Section("Headers")
	for _, line := range resp.HeaderLines() {
		b.Item("%s", line)
	}

	b.Section(fmt.Sprintf("Body (%s)", render.FormatBytes(resp.Size)))
	if len(resp.Body) == 0 {
		b.Item("(empty)")
	} else {
		b.Block(string(resp.Body))
	}
	if resp.Truncated {
		b.Line()
		b.Println("(body truncated to %s)", render.FormatBytes(int64(len(resp.Body))))
	}
	return b.Result(), nil
}

func methodOf(r Request) string {
	if r.Method == "" {
		return "GET"
	}
	return r.Method
}

func (t *Toolset) listHistory(_ context.Context, args tool.Args) (*tool.Result, error) {
	entries, err := t.history.List(args.Int("limit"))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return tool.Text("No requests recorded"), nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := fmt.Sprint(e.Status)
		if e.Error != "" {
			status = "error"
		}
		rows = append(rows, []string{
			e.ID,
			e.Time.Format("2006-01-02 15:04:05"),
			methodOf(e.Request),
			render.Truncate(e.Request.URL, 60),
			status,
			render.FormatDuration(e.Duration),
		})
	}

	b := render.NewBuilder()
	b.Header("Request history (%d)", len(entries))
	b.Table([]string{"id", "time", "method", "url", "status", "duration"}, rows)
	return b.Result(), nil
}

func (t *Toolset) clearHistory(context.Context, tool.Args) (*tool.Result, error) {
	n, err := t.history.Clear()
	if err != nil {
		return nil, err
	}
	return tool.Textf("Cleared %d requests", n), nil
}

type attempt struct {
	status   int
	duration time.Duration
	err      error
}

func (t *Toolset) healthCheck(ctx context.Context, args tool.Args) (*tool.Result, error) {
	url := args.String("url")
	count := args.Int("count")
	if count <= 0 {
		count = 1
	}
	interval := time.Duration(args.Int("interval_ms")) * time.Millisecond
	expected := args.Int("expected_status")
	req := Request{
		Method:          args.String("method"),
		URL:             url,
		Timeout:         seconds(args.Float("timeout_seconds")),
		FollowRedirects: true,
	}

	attempts := make([]attempt, 0, count)
	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
		start := time.Now()
		resp, err := t.client.Do(ctx, req)
		t.metrics.RecordExternal("health_check", err)
		p := attempt{duration: time.Since(start), err: err}
		if err == nil {
			p.status = resp.Status
			p.duration = resp.Duration
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		attempts = append(attempts, p)
	}

	return renderHealth(methodOf(req), url, expected, attempts), nil
}

func renderHealth(method, url string, expected int, attempts []attempt) *tool.Result {
	b := render.NewBuilder()
	b.Header("Health check")
	b.KV("Target", method+" "+url)
	b.Line()

	var (
		healthy       int
		total         time.Duration
		fastest, slow time.Duration
		measured      int
	)
	for i, p := range attempts {
		switch {
		case p.err != nil:
			b.Item("%d. %s error: %v", i+1, render.StatusIcon("error"), p.err)
			continue
		case p.status == expected:
			healthy++
			b.Item("%d. %s %d %s", i+1, render.StatusIcon("ok"), p.status, render.FormatDuration(p.duration))
		default:
			b.Item("%d. %s %d (expected %d) %s", i+1, render.StatusIcon("error"), p.status, expected, render.FormatDuration(p.duration))
		}
		measured++
		total += p.duration
		if fastest == 0 || p.duration < fastest {
			fastest = p.duration
		}
		if p.duration > slow {
			slow = p.duration
		}
	}

	b.Section("Summary")
	b.KV("Healthy", fmt.Sprintf("%d/%d (%d%%)", healthy, len(attempts), healthy*100/len(attempts)))
	if measured > 0 {
		b.KV("Latency", fmt.Sprintf("min %s  avg %s  max %s",
			render.FormatDuration(fastest), render.FormatDuration(total/time.Duration(measured)), render.FormatDuration(slow)))
	}
	status := "healthy"
	switch {
	case healthy == 0:
		status = "down"
	case healthy < len(attempts):
		status = "degraded"
	}
	b.KV("Status", status)
	return b.Result()
}
