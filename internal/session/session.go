// Package session holds the single active client a daemon talks to.
//
// A Holder owns at most one client at a time. Replacing an open client
// closes the old one before the new one is opened, so a daemon never holds
// two connections to its external system.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotOpen is returned when no client is held.
var ErrNotOpen = errors.New("no active session")

// Opener creates a client.
type Opener[T any] func(ctx context.Context) (T, error)

// Closer releases a client.
type Closer[T any] func(T) error

// Info describes the held client.
type Info struct {
	Label    string
	OpenedAt time.Time
}

// Holder owns at most one client of type T.
type Holder[T any] struct {
	mu       sync.Mutex
	client   T
	open     bool
	info     Info
	closeFn  Closer[T]
	notOpen  error
	replaced int
}

// New creates an empty holder. closeFn releases clients on Replace and Close.
func New[T any](closeFn Closer[T]) *Holder[T] {
	return &Holder[T]{closeFn: closeFn, notOpen: ErrNotOpen}
}

// WithNotOpenError sets the error returned by Get while empty.
func (h *Holder[T]) WithNotOpenError(err error) *Holder[T] {
	h.notOpen = err
	return h
}

// Replace closes the current client, if any, then opens a new one.
// The holder stays empty when open fails. A close failure on the old client
// is returned together with the outcome of open.
func (h *Holder[T]) Replace(ctx context.Context, label string, open Opener[T]) (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var closeErr error
	if h.open {
		closeErr = h.closeLocked()
		h.replaced++
	}

	client, err := open(ctx)
	if err != nil {
		var zero T
		return zero, errors.Join(err, wrapClose(closeErr))
	}

	h.client = client
	h.open = true
	h.info = Info{Label: label, OpenedAt: time.Now()}
	return client, wrapClose(closeErr)
}

// Get returns the current client.
func (h *Holder[T]) Get() (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		var zero T
		return zero, h.notOpen
	}
	return h.client, nil
}

// Info describes the current client.
func (h *Holder[T]) Info() (Info, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.info, h.open
}

// IsOpen reports whether a client is held.
func (h *Holder[T]) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open
}

// Replaced returns how many times an open client was replaced.
func (h *Holder[T]) Replaced() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.replaced
}

// Close releases the current client. Closing an empty holder returns
// ErrNotOpen.
func (h *Holder[T]) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return ErrNotOpen
	}
	return h.closeLocked()
}

// Shutdown releases the current client and ignores an empty holder.
func (h *Holder[T]) Shutdown(context.Context) error {
	err := h.Close()
	if errors.Is(err, ErrNotOpen) {
		return nil
	}
	return err
}

func (h *Holder[T]) closeLocked() error {
	var err error
	if h.closeFn != nil {
		err = h.closeFn(h.client)
	}
	var zero T
	h.client = zero
	h.open = false
	h.info = Info{}
	return err
}

func wrapClose(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("close previous session: %w", err)
}
