package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestNewShutdownManager(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)
	if m.timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", m.timeout)
	}

	if d := NewShutdownManager(0).timeout; d != DefaultShutdownTimeout {
		t.Errorf("expected default timeout, got %v", d)
	}
}

func TestShutdownManager_LIFOSequential(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)

	var mu sync.Mutex
	var order []string
	var running int32

	for _, name := range []string{"metrics", "store", "dispatcher"} {
		name := name
		m.Register(name, func(ctx context.Context) error {
			if atomic.AddInt32(&running, 1) != 1 {
				t.Error("handlers must not overlap")
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)

			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	if err := m.Shutdown("test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"dispatcher", "store", "metrics"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestShutdownManager_Once(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)

	var calls int32
	m.Register("counter", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	m.Shutdown("first")
	m.Shutdown("second")

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected handler to run once, ran %d times", calls)
	}
	if m.Reason() != "first" {
		t.Errorf("expected reason 'first', got %q", m.Reason())
	}
}

func TestShutdownManager_CollectsErrors(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)

	boom := errors.New("close failed")
	m.Register("ok", func(ctx context.Context) error { return nil })
	m.Register("bad", func(ctx context.Context) error { return boom })

	err := m.Shutdown("test")
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error to contain boom, got %v", err)
	}
}

func TestShutdownManager_ContextCancelled(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)
	ctx := m.Context()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before shutdown")
	default:
	}

	m.Shutdown("test")

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}

	if m.Reason() != "test" {
		t.Errorf("expected reason 'test', got %q", m.Reason())
	}
}

func TestShutdownManager_Timeout(t *testing.T) {
	m := NewShutdownManager(50 * time.Millisecond)

	skipped := false
	m.Register("never-reached", func(ctx context.Context) error {
		skipped = true
		return nil
	})
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := m.Shutdown("test")
	if time.Since(start) > time.Second {
		t.Error("shutdown exceeded its timeout")
	}
	if err == nil {
		t.Error("expected timeout error")
	}
	if skipped {
		t.Error("handler after timeout should be skipped")
	}
}

func TestShutdownManager_Signal(t *testing.T) {
	m := NewShutdownManager(time.Second)
	m.ListenForSignals()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}

	reason := make(chan string, 1)
	go func() { reason <- m.Reason() }()

	select {
	case r := <-reason:
		if r != "signal terminated" {
			t.Errorf("unexpected reason %q", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("signal did not trigger shutdown")
	}
}
