// Package httpclient exposes an HTTP client as tools. Every request is
// recorded in a bbolt history so it can be listed and replayed.
package httpclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/joss/mcpd/internal/config"
)

// Methods lists the accepted request methods.
var Methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// AuthTypes lists the accepted auth schemes.
var AuthTypes = []string{"none", "basic", "bearer", "header"}

// Auth configures request authentication.
type Auth struct {
	Type     string `json:"type,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
	Header   string `json:"header,omitempty"`
	Value    string `json:"value,omitempty"`
}

func (a Auth) apply(req *http.Request) error {
	switch a.Type {
	case "", "none":
	case "basic":
		cred := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
		req.Header.Set("Authorization", "Basic "+cred)
	case "bearer":
		if a.Token == "" {
			return errors.New("bearer auth needs token")
		}
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case "header":
		if a.Header == "" {
			return errors.New("header auth needs header")
		}
		req.Header.Set(a.Header, a.Value)
	default:
		return fmt.Errorf("unsupported auth type %q", a.Type)
	}
	return nil
}

// Request is a caller-described HTTP request.
type Request struct {
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Headers         map[string]string `json:"headers,omitempty"`
	Query           map[string]string `json:"query,omitempty"`
	Body            string            `json:"body,omitempty"`
	JSON            any               `json:"json,omitempty"`
	Auth            Auth              `json:"auth,omitempty"`
	Timeout         time.Duration     `json:"timeout"`
	FollowRedirects bool              `json:"follow_redirects"`
}

// Build turns r into an *http.Request bound to ctx.
func (r Request) Build(ctx context.Context, userAgent string) (*http.Request, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %q: scheme must be http or https", r.URL)
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, v := range r.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode json body: %w", err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	case r.Body != "":
		body = strings.NewReader(r.Body)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if err := r.Auth.apply(req); err != nil {
		return nil, err
	}
	return req, nil
}

// Response is the outcome of a request that reached the server.
type Response struct {
	Status    int
	Line      string
	Proto     string
	Header    http.Header
	Body      []byte
	Size      int64
	Truncated bool
	Duration  time.Duration
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// HeaderLines returns "Key: value" lines sorted by key.
func (r *Response) HeaderLines() []string {
	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+strings.Join(r.Header[k], ", "))
	}
	return lines
}

// Client issues requests over a pooled transport.
type Client struct {
	transport http.RoundTripper
	userAgent string
	maxBody   int64
}

// NewClient creates a client. A nil transport uses a pooled cleanhttp one.
func NewClient(cfg config.HTTPConfig, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = cleanhttp.DefaultPooledTransport()
	}
	return &Client{transport: transport, userAgent: cfg.UserAgent, maxBody: cfg.MaxBodyBytes}
}

// Do sends r. Any status is a Response; only transport failures are errors.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	req, err := r.Build(ctx, c.userAgent)
	if err != nil {
		return nil, err
	}

	hc := &http.Client{Transport: c.transport}
	if !r.FollowRedirects {
		hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &Response{
		Status: resp.StatusCode,
		Line:   resp.Status,
		Proto:  resp.Proto,
		Header: resp.Header,
	}

	limit := c.maxBody
	if limit <= 0 {
		limit = 1 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	out.Size = int64(len(body))
	if int64(len(body)) > limit {
		n, _ := io.Copy(io.Discard, resp.Body)
		out.Size += n
		body = body[:limit]
		out.Truncated = true
	}
	out.Body = body
	out.Duration = time.Since(start)
	return out, nil
}
