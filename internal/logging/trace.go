package logging

import "context"

type contextKey string

const (
	callIDKey contextKey = "call_id"
	toolKey   contextKey = "tool"
)

// WithCallID adds the transport correlation id to ctx.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey, id)
}

// CallID extracts the correlation id from ctx.
// Returns empty string if not present.
func CallID(ctx context.Context) string {
	if v, ok := ctx.Value(callIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTool records the tool being executed in ctx.
func WithTool(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolKey, name)
}

// ToolName extracts the tool name from ctx.
func ToolName(ctx context.Context) string {
	if v, ok := ctx.Value(toolKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns a logger for component carrying the call id and tool
// name found in ctx.
func FromContext(ctx context.Context, component string) *Logger {
	l := New(component)
	if id := CallID(ctx); id != "" {
		l = l.With("call_id", id)
	}
	if name := ToolName(ctx); name != "" {
		l = l.With("tool", name)
	}
	return l
}
