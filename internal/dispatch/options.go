package dispatch

import (
	"time"

	"github.com/joss/mcpd/internal/logging"
	"github.com/joss/mcpd/internal/metrics"
	"github.com/joss/mcpd/internal/tool"
)

// Options configures a Dispatcher.
type Options struct {
	// DefaultTimeout applies to specs without their own Timeout.
	DefaultTimeout time.Duration
	// SlowTimeout applies to specs marked Slow.
	SlowTimeout time.Duration
	Metrics     *metrics.Metrics
	Logger      *logging.Logger
	// Closers run in order during Shutdown.
	Closers []Closer
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		DefaultTimeout: tool.DefaultTimeout,
		SlowTimeout:    tool.SlowTimeout,
		Logger:         logging.New("dispatch"),
	}
}

// WithDefaultTimeout sets the budget for specs without one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.DefaultTimeout = d
		}
	}
}

// WithSlowTimeout sets the budget for specs marked Slow.
func WithSlowTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.SlowTimeout = d
		}
	}
}

// WithMetrics records call outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithLogger replaces the dispatch logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithClosers appends closers run at shutdown.
func WithClosers(c ...Closer) Option {
	return func(o *Options) { o.Closers = append(o.Closers, c...) }
}
