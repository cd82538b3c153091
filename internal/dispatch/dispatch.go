// Package dispatch routes validated tool calls to their handlers.
//
// A Dispatcher runs one call at a time. Each call is looked up in the
// registry, validated, and executed under its execution budget; every
// failure is folded into an error result so exactly one result comes back
// per call.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joss/mcpd/internal/logging"
	"github.com/joss/mcpd/internal/tool"
)

// Handler executes one tool against validated arguments. Handlers must honor
// ctx; a handler that ignores it is abandoned when its budget expires.
type Handler func(ctx context.Context, args tool.Args) (*tool.Result, error)

// Table maps tool names to handlers.
type Table map[string]Handler

// Closer releases external clients at shutdown.
type Closer interface {
	Close(ctx context.Context) error
}

// CloserFunc adapts a function to Closer.
type CloserFunc func(ctx context.Context) error

func (f CloserFunc) Close(ctx context.Context) error { return f(ctx) }

// Toolset is one daemon's tools: their specs, handlers and client lifecycle.
type Toolset interface {
	Specs() []tool.Spec
	Handlers() Table
	Closer
}

// State of the dispatcher.
type State int32

const (
	StateIdle State = iota
	StateDispatching
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Outcome labels a finished call in logs and metrics.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeToolError    Outcome = "tool_error"
	OutcomeValidation   Outcome = "validation_error"
	OutcomeUnknownTool  Outcome = "unknown_tool"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeShuttingDown Outcome = "shutting_down"
	OutcomeCancelled    Outcome = "cancelled"
)

// OutcomeOf classifies a call error. A nil error with an error result is a
// tool error reported by the handler itself.
func OutcomeOf(res *tool.Result, err error) Outcome {
	if err == nil {
		if res != nil && res.IsError {
			return OutcomeToolError
		}
		return OutcomeOK
	}
	switch tool.KindOf(err) {
	case tool.KindUnknownTool:
		return OutcomeUnknownTool
	case tool.KindMissingParameter, tool.KindTypeMismatch, tool.KindInvalidEnum:
		return OutcomeValidation
	case tool.KindTimeout:
		return OutcomeTimeout
	case tool.KindShuttingDown:
		return OutcomeShuttingDown
	}
	if errors.Is(err, context.Canceled) {
		return OutcomeCancelled
	}
	return OutcomeToolError
}

// Dispatcher is the per-process call router.
type Dispatcher struct {
	registry *tool.Registry
	handlers Table
	opts     Options
	recovery *logging.RecoveryHandler

	sem     chan struct{}
	closing chan struct{}
	state   atomic.Int32

	shutdownOnce sync.Once
	shutdownErr  error
}

// New wires registry to table. Every registered tool needs a handler and
// every handler a registered tool; anything else is a wiring defect.
func New(registry *tool.Registry, table Table, opts ...Option) (*Dispatcher, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var missing, orphan []string
	for _, name := range registry.Names() {
		if _, ok := table[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range table {
		if _, ok := registry.Get(name); !ok {
			orphan = append(orphan, name)
		}
	}
	sort.Strings(orphan)

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("tools without handler: %v", missing))
	}
	if len(orphan) > 0 {
		errs = append(errs, fmt.Errorf("handlers without tool: %v", orphan))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("dispatcher wiring: %w", errors.Join(errs...))
	}

	handlers := make(Table, len(table))
	for k, v := range table {
		handlers[k] = v
	}

	return &Dispatcher{
		registry: registry,
		handlers: handlers,
		opts:     o,
		recovery: logging.NewRecoveryHandler("dispatch"),
		sem:      make(chan struct{}, 1),
		closing:  make(chan struct{}),
	}, nil
}

// FromToolset registers the toolset's specs in a fresh registry and wires
// its handlers. The toolset is closed on Shutdown after any other closers.
func FromToolset(ts Toolset, opts ...Option) (*Dispatcher, error) {
	reg := tool.NewRegistry()
	if err := reg.RegisterAll(ts.Specs()...); err != nil {
		return nil, err
	}
	opts = append(opts, WithClosers(ts))
	return New(reg, ts.Handlers(), opts...)
}

// Registry returns the schema registry.
func (d *Dispatcher) Registry() *tool.Registry {
	return d.registry
}

// State returns the current dispatcher state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Call dispatches one tool call. The returned result is never nil. The error
// is the classified failure, or nil when the handler succeeded; handlers
// that return an isError result without an error yield a nil error.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (*tool.Result, error) {
	start := time.Now()

	res, err := d.call(ctx, name, args, start)
	if err != nil {
		res = tool.ErrorResult(err)
	}

	outcome := OutcomeOf(res, err)
	d.opts.Logger.ToolCall(name, logging.CallID(ctx), string(outcome), time.Since(start), err)
	if d.opts.Metrics != nil {
		d.opts.Metrics.ObserveCall(name, string(outcome), time.Since(start))
	}
	return res, err
}

func (d *Dispatcher) call(ctx context.Context, name string, args map[string]any, start time.Time) (*tool.Result, error) {
	if d.State() == StateShuttingDown {
		return nil, tool.ErrShuttingDown
	}

	select {
	case d.sem <- struct{}{}:
	case <-d.closing:
		return nil, tool.ErrShuttingDown
	case <-ctx.Done():
		return nil, fmt.Errorf("call cancelled: %w", ctx.Err())
	}
	defer func() { <-d.sem }()

	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateDispatching)) {
		return nil, tool.ErrShuttingDown
	}
	defer d.state.CompareAndSwap(int32(StateDispatching), int32(StateIdle))

	spec, ok := d.registry.Get(name)
	if !ok {
		return nil, &tool.UnknownToolError{Name: name}
	}

	validated, err := tool.Validate(spec, args)
	if err != nil {
		return nil, err
	}

	h, ok := d.handlers[name]
	if !ok {
		panic(fmt.Sprintf("dispatch: tool %q registered without handler", name))
	}

	return d.execute(ctx, spec, h, validated, start)
}

type handlerResult struct {
	res *tool.Result
	err error
}

func (d *Dispatcher) execute(ctx context.Context, spec tool.Spec, h Handler, args tool.Args, start time.Time) (*tool.Result, error) {
	budget := spec.Budget(d.opts.DefaultTimeout, d.opts.SlowTimeout)
	cctx, cancel := context.WithTimeout(logging.WithTool(ctx, spec.Name), budget)
	defer cancel()

	if d.opts.Metrics != nil {
		d.opts.Metrics.CallStarted()
		defer d.opts.Metrics.CallEnded()
	}

	done := make(chan handlerResult, 1)
	go func() {
		var res *tool.Result
		err := d.recovery.WrapError(func() error {
			var herr error
			res, herr = h(cctx, args)
			return herr
		})
		done <- handlerResult{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) && errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, &tool.TimeoutError{Tool: spec.Name, Elapsed: time.Since(start)}
			}
			return nil, out.err
		}
		if out.res == nil {
			return tool.Text(""), nil
		}
		return out.res, nil
	case <-cctx.Done():
		if ctx.Err() != nil {
			return nil, fmt.Errorf("call cancelled: %w", ctx.Err())
		}
		d.opts.Logger.Warn("handler_abandoned", map[string]any{"tool": spec.Name, "budget_ms": budget.Milliseconds()}, nil)
		return nil, &tool.TimeoutError{Tool: spec.Name, Elapsed: time.Since(start)}
	}
}

// Shutdown stops accepting calls, waits for the in-flight call until ctx
// ends, then runs the closers in order. Later calls return the first result.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.shutdownOnce.Do(func() {
		d.state.Store(int32(StateShuttingDown))
		close(d.closing)

		var errs []error
		select {
		case d.sem <- struct{}{}:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("in-flight call did not finish: %w", ctx.Err()))
		}

		for _, c := range d.opts.Closers {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		d.shutdownErr = errors.Join(errs...)
		d.opts.Logger.Info("dispatcher_stopped", map[string]any{"closers": len(d.opts.Closers)})
	})
	return d.shutdownErr
}
