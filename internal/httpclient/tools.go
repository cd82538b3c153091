package httpclient

import "github.com/joss/mcpd/internal/tool"

// Specs returns the http-mcp tools in listing order.
func Specs() []tool.Spec {
	return []tool.Spec{
		{
			Name:        "send_http_request",
			Description: "Send an HTTP request; any response status is reported as content",
			Parameters: []tool.Field{
				{Name: "url", Description: "Absolute http or https URL", Param: tool.String{}, Required: true},
				{Name: "method", Description: "Request method", Param: tool.Enum{Values: Methods}, Default: "GET"},
				{Name: "headers", Description: "Request headers", Param: tool.Object{}, Default: map[string]any{}},
				{Name: "query", Description: "Query parameters merged into the URL", Param: tool.Object{}, Default: map[string]any{}},
				{Name: "body", Description: "Raw request body", Param: tool.String{}},
				{Name: "json", Description: "JSON request body; sets Content-Type", Param: tool.AnyValue()},
				{Name: "auth", Description: "Authentication", Param: tool.Object{Fields: []tool.Field{
					{Name: "type", Description: "Auth scheme", Param: tool.Enum{Values: AuthTypes}, Required: true},
					{Name: "username", Description: "Basic auth user", Param: tool.String{}},
					{Name: "password", Description: "Basic auth password", Param: tool.String{}},
					{Name: "token", Description: "Bearer token", Param: tool.String{}},
					{Name: "header", Description: "Header name for header auth", Param: tool.String{}},
					{Name: "value", Description: "Header value for header auth", Param: tool.String{}},
				}}},
				{Name: "timeout_seconds", Description: "Request timeout", Param: tool.Number{}, Default: float64(30)},
				{Name: "follow_redirects", Description: "Follow 3xx responses", Param: tool.Boolean{}, Default: true},
			},
		},
		{
			Name:        "replay_request",
			Description: "Send a recorded request again",
			Parameters: []tool.Field{
				{Name: "id", Description: "History entry id", Param: tool.String{}, Required: true},
			},
		},
		{
			Name:        "list_request_history",
			Description: "List recorded requests, newest first",
			Parameters: []tool.Field{
				{Name: "limit", Description: "Entries to return", Param: tool.Integer{}, Default: int64(20)},
			},
		},
		{
			Name:        "clear_request_history",
			Description: "Delete every recorded request",
		},
		{
			Name:        "health_check",
			Description: "Request a URL repeatedly and summarize availability and latency",
			Slow:        true,
			Parameters: []tool.Field{
				{Name: "url", Description: "URL to check", Param: tool.String{}, Required: true},
				{Name: "count", Description: "Number of checks", Param: tool.Integer{}, Default: int64(5)},
				{Name: "interval_ms", Description: "Delay between checks", Param: tool.Integer{}, Default: int64(1000)},
				{Name: "expected_status", Description: "Status counted as healthy", Param: tool.Integer{}, Default: int64(200)},
				{Name: "method", Description: "Request method", Param: tool.Enum{Values: []string{"HEAD", "GET"}}, Default: "HEAD"},
				{Name: "timeout_seconds", Description: "Per-check timeout", Param: tool.Number{}, Default: float64(10)},
			},
		},
	}
}
