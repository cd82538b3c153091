// Package runtime provides graceful shutdown handling for the daemons.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joss/mcpd/internal/logging"
)

// ShutdownFunc is a cleanup function called during shutdown
type ShutdownFunc func(ctx context.Context) error

// ShutdownManager handles graceful shutdown of the application
type ShutdownManager struct {
	mu          sync.Mutex
	handlers    []namedHandler
	timeout     time.Duration
	shutdownCtx context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	once        sync.Once
	err         error
	reason      string
	log         *logging.Logger
	stopSignals func()
}

type namedHandler struct {
	name string
	fn   ShutdownFunc
}

// DefaultShutdownTimeout is the default timeout for cleanup operations
const DefaultShutdownTimeout = 10 * time.Second

// NewShutdownManager creates a new shutdown manager with specified timeout
func NewShutdownManager(timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ShutdownManager{
		handlers:    make([]namedHandler, 0),
		timeout:     timeout,
		shutdownCtx: ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		log:         logging.New("shutdown"),
	}
}

// Register adds a cleanup handler to be called during shutdown.
// Handlers run one at a time in reverse order (LIFO): last registered,
// first called.
func (m *ShutdownManager) Register(name string, fn ShutdownFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, namedHandler{name: name, fn: fn})
}

// Context returns a context that is cancelled when shutdown begins
func (m *ShutdownManager) Context() context.Context {
	return m.shutdownCtx
}

// ListenForSignals starts listening for shutdown signals (SIGTERM, SIGINT).
// This is non-blocking and should be called once at startup.
func (m *ShutdownManager) ListenForSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	stop := make(chan struct{})
	m.mu.Lock()
	m.stopSignals = func() {
		signal.Stop(sigChan)
		close(stop)
	}
	m.mu.Unlock()

	go func() {
		select {
		case sig := <-sigChan:
			m.Shutdown(fmt.Sprintf("signal %v", sig))
		case <-stop:
		}
	}()
}

// Shutdown initiates graceful shutdown. Only the first call has an effect;
// later calls wait for it to finish. It returns the joined handler errors.
func (m *ShutdownManager) Shutdown(reason string) error {
	m.once.Do(func() {
		m.reason = reason
		m.performShutdown()
	})
	<-m.done
	return m.err
}

// Reason returns what triggered shutdown.
func (m *ShutdownManager) Reason() string {
	<-m.done
	return m.reason
}

func (m *ShutdownManager) performShutdown() {
	defer close(m.done)

	m.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	handlers := make([]namedHandler, len(m.handlers))
	copy(handlers, m.handlers)
	stopSignals := m.stopSignals
	m.mu.Unlock()

	if stopSignals != nil {
		stopSignals()
	}

	m.log.Info("shutdown_started", map[string]any{"reason": m.reason, "handlers": len(handlers)})
	start := time.Now()

	var errs []error
	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: skipped, shutdown timed out after %v", h.name, m.timeout))
			continue
		}

		hstart := time.Now()
		err := h.fn(ctx)
		if err != nil {
			m.log.Warn("shutdown_handler_failed", map[string]any{"handler": h.name, "duration_ms": time.Since(hstart).Milliseconds()}, err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		m.log.Debug("shutdown_handler_ok", map[string]any{"handler": h.name, "duration_ms": time.Since(hstart).Milliseconds()})
	}

	m.err = errors.Join(errs...)
	m.log.TimedEvent("shutdown_complete", start, map[string]any{"errors": len(errs)})
}
