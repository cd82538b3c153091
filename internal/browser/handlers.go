package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"

	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/logging"
	"github.com/joss/mcpd/internal/metrics"
	"github.com/joss/mcpd/internal/render"
	"github.com/joss/mcpd/internal/tool"
)

// maxContent caps get_content and evaluate output.
const maxContent = 100_000

// Toolset is the browser-mcp tool table.
type Toolset struct {
	engine   Engine
	sessions *Sessions
	cfg      config.BrowserConfig
	shotDir  string
	metrics  *metrics.Metrics
	log      *logging.Logger
}

// New creates a toolset. Screenshots without a path are written to shotDir.
func New(cfg config.BrowserConfig, engine Engine, shotDir string, m *metrics.Metrics) *Toolset {
	return &Toolset{
		engine:   engine,
		sessions: NewSessions(),
		cfg:      cfg,
		shotDir:  shotDir,
		metrics:  m,
		log:      logging.New("browser"),
	}
}

// Specs implements dispatch.Toolset.
func (t *Toolset) Specs() []tool.Spec { return Specs() }

// Close implements dispatch.Toolset. Every browser is closed.
func (t *Toolset) Close(context.Context) error {
	var errs []error
	for _, b := range t.sessions.allBrowsers() {
		errs = append(errs, t.closeBrowserEntry(b.id))
	}
	return errors.Join(errs...)
}

// Handlers implements dispatch.Toolset.
func (t *Toolset) Handlers() dispatch.Table {
	return dispatch.Table{
		"launch_browser":    t.launchBrowser,
		"close_browser":     t.closeBrowser,
		"new_page":          t.newPage,
		"list_pages":        t.listPages,
		"switch_page":       t.switchPage,
		"close_page":        t.closePage,
		"navigate":          t.navigate,
		"click":             t.withPage(t.click),
		"fill":              t.withPage(t.fill),
		"wait_for_selector": t.withPage(t.waitFor),
		"screenshot":        t.withPage(t.screenshot),
		"get_content":       t.withPage(t.getContent),
		"evaluate":          t.withPage(t.evaluate),
	}
}

type pageHandler func(ctx context.Context, p *pageEntry, args tool.Args) (*tool.Result, error)

func (t *Toolset) withPage(h pageHandler) dispatch.Handler {
	return func(ctx context.Context, args tool.Args) (*tool.Result, error) {
		p, err := t.sessions.page(args.String("page_id"))
		if err != nil {
			return nil, err
		}
		return h(ctx, p, args)
	}
}

func (t *Toolset) launch(ctx context.Context, headless bool) (*browserEntry, error) {
	b, err := t.engine.Launch(ctx, LaunchOptions{Headless: headless, Bin: t.cfg.Bin})
	t.metrics.RecordExternal("launch", err)
	if err != nil {
		return nil, err
	}
	e := t.sessions.addBrowser(b, headless)
	t.log.Info("browser_launched", map[string]any{"browser_id": e.id, "headless": headless})
	return e, nil
}

func (t *Toolset) launchBrowser(ctx context.Context, args tool.Args) (*tool.Result, error) {
	e, err := t.launch(ctx, args.Bool("headless"))
	if err != nil {
		return nil, err
	}

	mode := "headless"
	if !e.headless {
		mode = "visible"
	}
	b := render.NewBuilder()
	b.Println("Launched %s (%s)", args.String("browser"), mode)
	b.KV("Browser id", e.id)
	if v, err := e.browser.Version(ctx); err == nil {
		b.KV("Version", v)
	}
	return b.Result(), nil
}

func (t *Toolset) closeBrowserEntry(id string) error {
	e, pages := t.sessions.removeBrowser(id)
	if e == nil {
		return nil
	}
	var errs []error
	for _, p := range pages {
		if err := p.page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	t.log.Info("browser_closed", map[string]any{"browser_id": id, "pages": len(pages)})
	return errors.Join(errs...)
}

func (t *Toolset) closeBrowser(_ context.Context, args tool.Args) (*tool.Result, error) {
	var targets []*browserEntry
	if id := args.String("browser_id"); id != "" {
		e, err := t.sessions.browser(id)
		if err != nil {
			return nil, err
		}
		targets = []*browserEntry{e}
	} else {
		targets = t.sessions.allBrowsers()
	}
	if len(targets) == 0 {
		return tool.Text("No browser running"), nil
	}

	var errs []error
	for _, e := range targets {
		if err := t.closeBrowserEntry(e.id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if len(targets) == 1 {
		return tool.Textf("Closed browser %s", targets[0].id), nil
	}
	return tool.Textf("Closed %d browsers", len(targets)), nil
}

func (t *Toolset) newPage(ctx context.Context, args tool.Args) (*tool.Result, error) {
	e, err := t.sessions.browser(args.String("browser_id"))
	launched := false
	if errors.Is(err, ErrNoBrowser) {
		e, err = t.launch(ctx, t.cfg.Headless)
		launched = true
	}
	if err != nil {
		return nil, err
	}

	page, err := e.browser.NewPage(ctx, args.String("url"))
	t.metrics.RecordExternal("new_page", err)
	if err != nil {
		return nil, err
	}
	p := t.sessions.addPage(e.id, page)

	b := render.NewBuilder()
	if launched {
		b.Println("Launched browser %s", e.id)
	}
	b.Println("Opened page %s (current)", p.id)
	if info, err := page.Info(ctx); err == nil && info.URL != "" {
		b.KV("URL", info.URL)
		b.KV("Title", info.Title)
	}
	return b.Result(), nil
}

func (t *Toolset) listPages(ctx context.Context, _ tool.Args) (*tool.Result, error) {
	pages, current := t.sessions.allPages()
	if len(pages) == 0 {
		return tool.Text("No open pages"), nil
	}

	rows := make([][]string, 0, len(pages))
	for _, p := range pages {
		marker := ""
		if p.id == current {
			marker = "*"
		}
		info, err := p.page.Info(ctx)
		if err != nil {
			info = PageInfo{URL: "(unavailable: " + err.Error() + ")"}
		}
		rows = append(rows, []string{marker, p.id, render.Truncate(info.Title, 40), info.URL})
	}

	b := render.NewBuilder()
	b.Header("Pages (%d)", len(pages))
	b.Table([]string{"", "id", "title", "url"}, rows)
	return b.Result(), nil
}

func (t *Toolset) switchPage(ctx context.Context, args tool.Args) (*tool.Result, error) {
	p, err := t.sessions.setCurrent(args.String("page_id"))
	if err != nil {
		return nil, err
	}
	b := render.NewBuilder()
	b.Println("Switched to page %s", p.id)
	if info, err := p.page.Info(ctx); err == nil {
		b.KV("URL", info.URL)
	}
	return b.Result(), nil
}

func (t *Toolset) closePage(_ context.Context, args tool.Args) (*tool.Result, error) {
	p, err := t.sessions.page(args.String("page_id"))
	if err != nil {
		return nil, err
	}
	t.sessions.removePage(p.id)
	if err := p.page.Close(); err != nil {
		return nil, err
	}

	b := render.NewBuilder()
	b.Println("Closed page %s", p.id)
	if next, err := t.sessions.page(""); err == nil {
		b.Println("Current page: %s", next.id)
	}
	return b.Result(), nil
}

// navigate opens a page first when none is open.
func (t *Toolset) navigate(ctx context.Context, args tool.Args) (*tool.Result, error) {
	target := args.String("url")
	p, err := t.sessions.page(args.String("page_id"))
	if errors.Is(err, ErrNoPage) {
		if _, err := t.newPage(ctx, tool.Args{}); err != nil {
			return nil, err
		}
		p, err = t.sessions.page("")
	}
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = p.page.Navigate(ctx, target)
	t.metrics.RecordExternal("navigate", err)
	if err != nil {
		return nil, err
	}
	info, err := p.page.Info(ctx)
	if err != nil {
		return nil, err
	}

	b := render.NewBuilder()
	b.Println("Navigated to %s", info.URL)
	b.KV("Title", info.Title)
	b.KV("Page id", p.id)
	b.KV("Load time", render.FormatDuration(time.Since(start)))
	return b.Result(), nil
}

func (t *Toolset) click(ctx context.Context, p *pageEntry, args tool.Args) (*tool.Result, error) {
	sel := args.String("selector")
	if err := p.page.Click(ctx, sel); err != nil {
		return nil, err
	}
	return tool.Textf("Clicked %s", sel), nil
}

func (t *Toolset) fill(ctx context.Context, p *pageEntry, args tool.Args) (*tool.Result, error) {
	sel, value := args.String("selector"), args.String("value")
	if err := p.page.Fill(ctx, sel, value); err != nil {
		return nil, err
	}
	return tool.Textf("Filled %s with %q", sel, render.Truncate(value, 40)), nil
}

func (t *Toolset) waitFor(ctx context.Context, p *pageEntry, args tool.Args) (*tool.Result, error) {
	sel := args.String("selector")
	timeout := time.Duration(args.Float("timeout_seconds") * float64(time.Second))
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if err := p.page.WaitFor(ctx, sel); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return tool.ErrorText(fmt.Sprintf("selector %s not visible after %s", sel, render.FormatDuration(timeout))), nil
		}
		return nil, err
	}
	return tool.Textf("Selector %s visible after %s", sel, render.FormatDuration(time.Since(start))), nil
}

func (t *Toolset) screenshot(ctx context.Context, p *pageEntry, args tool.Args) (*tool.Result, error) {
	data, err := p.page.Screenshot(ctx, args.Bool("full_page"))
	t.metrics.RecordExternal("screenshot", err)
	if err != nil {
		return nil, err
	}

	path := args.String("path")
	if path == "" {
		path = filepath.Join(t.shotDir, fmt.Sprintf("%s-%s.png", p.id[:8], time.Now().Format("20060102-150405.000")))
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create screenshot dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write screenshot: %w", err)
	}
	return tool.Textf("Saved screenshot (%s) to %s", render.FormatBytes(int64(len(data))), path), nil
}

func (t *Toolset) getContent(ctx context.Context, p *pageEntry, args tool.Args) (*tool.Result, error) {
	format := args.String("format")

	var (
		out string
		err error
	)
	switch format {
	case "text":
		out, err = p.page.Text(ctx)
	case "html":
		out, err = p.page.HTML(ctx)
	case "markdown":
		var html string
		if html, err = p.page.HTML(ctx); err == nil {
			out, err = htmltomarkdown.ConvertString(html)
		}
	case "article":
		out, err = t.article(ctx, p.page)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return tool.Text(capContent(strings.TrimSpace(out))), nil
}

// article extracts the main readable content and renders it as markdown.
func (t *Toolset) article(ctx context.Context, page Page) (string, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return "", err
	}
	info, err := page.Info(ctx)
	if err != nil {
		return "", err
	}
	u, _ := url.Parse(info.URL)

	art, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil || strings.TrimSpace(art.TextContent) == "" {
		md, convErr := htmltomarkdown.ConvertString(html)
		if convErr != nil {
			return "", convErr
		}
		return "(no article found; full page follows)\n\n" + md, nil
	}

	md, err := htmltomarkdown.ConvertString(art.Content)
	if err != nil {
		md = art.TextContent
	}
	var sb strings.Builder
	if art.Title != "" {
		sb.WriteString("# " + art.Title + "\n\n")
	}
	if art.Byline != "" {
		sb.WriteString("_" + art.Byline + "_\n\n")
	}
	sb.WriteString(strings.TrimSpace(md))
	return sb.String(), nil
}

func (t *Toolset) evaluate(ctx context.Context, p *pageEntry, args tool.Args) (*tool.Result, error) {
	out, err := p.page.Eval(ctx, args.String("script"))
	if err != nil {
		return nil, err
	}
	return tool.Text(capContent(out)), nil
}

func capContent(s string) string {
	if len(s) <= maxContent {
		return s
	}
	return s[:maxContent] + fmt.Sprintf("\n... (truncated, %d of %d bytes shown)", maxContent, len(s))
}
