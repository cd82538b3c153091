// Package browser exposes browser automation as tools. Browsers and pages
// are tracked by id; page tools act on the current page unless told
// otherwise.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// LaunchOptions configures a new browser process.
type LaunchOptions struct {
	Headless bool
	Bin      string
}

// Engine starts browsers.
type Engine interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is one running browser process.
type Browser interface {
	NewPage(ctx context.Context, url string) (Page, error)
	Version(ctx context.Context) (string, error)
	Close() error
}

// PageInfo is the current location of a page.
type PageInfo struct {
	URL   string
	Title string
}

// Page is one tab. Every call is bound to ctx.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Info(ctx context.Context) (PageInfo, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	WaitFor(ctx context.Context, selector string) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	HTML(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	Eval(ctx context.Context, script string) (string, error)
	Close() error
}

// ─────────────────────────────────────────────────────────────────────────────
// rod
// ─────────────────────────────────────────────────────────────────────────────

// RodEngine drives Chromium over the DevTools protocol.
type RodEngine struct{}

// NewRodEngine creates the rod-backed engine.
func NewRodEngine() *RodEngine { return &RodEngine{} }

// Launch starts a browser and connects to it.
func (RodEngine) Launch(_ context.Context, opts LaunchOptions) (Browser, error) {
	bin := opts.Bin
	if bin == "" {
		if path, ok := launcher.LookPath(); ok {
			bin = path
		}
	}

	// The process outlives the launching call.
	l := launcher.New().Headless(opts.Headless)
	if bin != "" {
		l = l.Bin(bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	return &rodBrowser{browser: b, launcher: l}, nil
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func (b *rodBrowser) NewPage(ctx context.Context, url string) (Page, error) {
	p, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, err
	}
	if url != "" {
		if err := p.WaitLoad(); err != nil {
			return nil, err
		}
	}
	// Drop the call context from the stored page.
	return &rodPage{page: p.Context(context.Background())}, nil
}

func (b *rodBrowser) Version(ctx context.Context) (string, error) {
	v, err := proto.BrowserGetVersion{}.Call(b.browser.Context(ctx))
	if err != nil {
		return "", err
	}
	return v.Product, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	return err
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *rodPage) Info(ctx context.Context) (PageInfo, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return PageInfo{}, err
	}
	return PageInfo{URL: info.URL, Title: info.Title}, nil
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Fill(ctx context.Context, selector, value string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

func (p *rodPage) WaitFor(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

func (p *rodPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Text(ctx context.Context) (string, error) {
	body, err := p.page.Context(ctx).Element("body")
	if err != nil {
		return "", err
	}
	return body.Text()
}

func (p *rodPage) Eval(ctx context.Context, script string) (string, error) {
	res, err := p.page.Context(ctx).Eval(asFunction(script))
	if err != nil {
		return "", err
	}
	return res.Value.JSON("", "  "), nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

// asFunction wraps a bare expression so it can be evaluated as a function.
func asFunction(script string) string {
	s := strings.TrimSpace(script)
	if strings.HasPrefix(s, "function") || strings.Contains(s, "=>") {
		return s
	}
	return "() => (" + s + ")"
}
