// Package logging provides structured logging for the daemons.
//
// Every event is written to stderr; stdout belongs to the protocol.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.MessageFieldName = "event"
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
}

var (
	mu   sync.RWMutex
	root = zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().Timestamp().Logger()
)

// Options configures the process-wide logger.
type Options struct {
	Level  string
	Format string
	Output io.Writer
	// Fields are attached to every event, e.g. the daemon name.
	Fields map[string]any
}

// Setup replaces the process-wide logger.
func Setup(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	switch Format(strings.ToLower(opts.Format)) {
	case "", FormatJSON:
	case FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: out != os.Stderr}
	default:
		return fmt.Errorf("unknown log format %q", opts.Format)
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if len(opts.Fields) > 0 {
		ctx = ctx.Fields(opts.Fields)
	}

	mu.Lock()
	root = ctx.Logger()
	mu.Unlock()
	return nil
}

// ParseLevel maps a level name to zerolog. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Root returns the process-wide zerolog logger.
func Root() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Logger provides structured logging
type Logger struct {
	component string
	fields    map[string]any
}

// New creates a new logger for a component
func New(component string) *Logger {
	return &Logger{component: component}
}

// With returns a copy of the logger that adds key to every event.
func (l *Logger) With(key string, value any) *Logger {
	fields := make(map[string]any, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{component: l.component, fields: fields}
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

// log emits one event. A negative dur omits duration_ms.
func (l *Logger) log(level zerolog.Level, event string, extra map[string]any, err error, dur time.Duration) {
	zl := Root()
	e := zl.WithLevel(level)
	if e == nil {
		return
	}
	e = e.Str("component", l.component)
	if len(l.fields) > 0 {
		e = e.Fields(l.fields)
	}
	if dur >= 0 {
		e = e.Int64("duration_ms", dur.Milliseconds())
	}
	if len(extra) > 0 {
		e = e.Fields(extra)
	}
	if err != nil {
		e = e.Str("error", err.Error())
	}
	e.Msg(event)
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]any) {
	l.log(zerolog.DebugLevel, event, extra, nil, -1)
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]any) {
	l.log(zerolog.InfoLevel, event, extra, nil, -1)
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]any, err error) {
	l.log(zerolog.WarnLevel, event, extra, err, -1)
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]any, err error) {
	l.log(zerolog.ErrorLevel, event, extra, err, -1)
}

// TimedEvent logs an event with duration
func (l *Logger) TimedEvent(event string, start time.Time, extra map[string]any) {
	l.log(zerolog.InfoLevel, event, extra, nil, time.Since(start))
}

// ToolCall logs the outcome of one dispatched call.
func (l *Logger) ToolCall(name, callID, outcome string, dur time.Duration, err error) {
	level := zerolog.InfoLevel
	if err != nil {
		level = zerolog.WarnLevel
	}
	extra := map[string]any{"tool": name, "outcome": outcome}
	if callID != "" {
		extra["call_id"] = callID
	}
	l.log(level, "tool_call", extra, err, dur)
}
