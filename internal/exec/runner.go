// Package exec provides a testable command execution abstraction.
// Handlers that shell out take a Runner so tests can substitute MockRunner.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"strings"
	"sync"
	"time"
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// StdoutString returns trimmed stdout.
func (r Result) StdoutString() string {
	return strings.TrimSpace(string(r.Stdout))
}

// StderrString returns trimmed stderr.
func (r Result) StderrString() string {
	return strings.TrimSpace(string(r.Stderr))
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return fmt.Sprintf("%s: exit status %d", e.Name, e.Code)
}

// Runner defines the interface for executing external commands.
// Inject this instead of calling exec.Command directly.
type Runner interface {
	// Run executes a command and captures stdout and stderr separately.
	Run(ctx context.Context, name string, args ...string) (Result, error)

	// RunInDir executes a command in a specific directory.
	RunInDir(ctx context.Context, dir, name string, args ...string) (Result, error)

	// LookPath resolves an executable on PATH.
	LookPath(name string) (string, error)
}

// OSRunner implements Runner using os/exec. Commands are killed when their
// context is cancelled.
type OSRunner struct {
	// Env overrides environment variables (nil = inherit from parent)
	Env []string
	// WaitDelay bounds how long output pipes are drained after a kill.
	WaitDelay time.Duration
}

// NewOSRunner creates a new OS-based command runner.
func NewOSRunner() *OSRunner {
	return &OSRunner{WaitDelay: 2 * time.Second}
}

// Run executes a command.
func (r *OSRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return r.run(ctx, "", name, args)
}

// RunInDir executes a command in a specific directory.
func (r *OSRunner) RunInDir(ctx context.Context, dir, name string, args ...string) (Result, error) {
	return r.run(ctx, dir, name, args)
}

// LookPath resolves an executable on PATH.
func (r *OSRunner) LookPath(name string) (string, error) {
	return osexec.LookPath(name)
}

func (r *OSRunner) run(ctx context.Context, dir, name string, args []string) (Result, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = r.WaitDelay
	if r.Env != nil {
		cmd.Env = r.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", name, ctxErr)
	}
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{Name: name, Code: res.ExitCode, Stderr: res.StderrString()}
	}
	res.ExitCode = -1
	return res, err
}

// MockRunner implements Runner for testing. It is safe for concurrent use.
type MockRunner struct {
	mu sync.Mutex

	// Calls records all command invocations
	Calls []MockCall

	// Responses maps "name args..." prefixes to responses
	Responses map[string]MockResponse

	// Paths maps executables to LookPath results; missing entries fail.
	Paths map[string]string

	// Block, when set, makes every call wait for it to close or for the
	// context to end.
	Block chan struct{}
}

// MockCall records a single command invocation.
type MockCall struct {
	Name string
	Args []string
	Dir  string
}

// Line joins name and args with spaces.
func (c MockCall) Line() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// MockResponse defines the response for a mocked command.
type MockResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Err      error
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		Responses: make(map[string]MockResponse),
		Paths:     make(map[string]string),
	}
}

// AddResponse sets the response for a command prefix such as "docker ps".
// The longest matching prefix wins.
func (m *MockRunner) AddResponse(prefix string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[prefix] = resp
}

// LastCall returns the most recent invocation.
func (m *MockRunner) LastCall() (MockCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return MockCall{}, false
	}
	return m.Calls[len(m.Calls)-1], true
}

// CallCount returns the number of recorded invocations.
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return m.invoke(ctx, MockCall{Name: name, Args: args})
}

func (m *MockRunner) RunInDir(ctx context.Context, dir, name string, args ...string) (Result, error) {
	return m.invoke(ctx, MockCall{Name: name, Args: args, Dir: dir})
}

func (m *MockRunner) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Paths[name]; ok {
		return p, nil
	}
	return "", &osexec.Error{Name: name, Err: osexec.ErrNotFound}
}

func (m *MockRunner) invoke(ctx context.Context, call MockCall) (Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	resp := m.match(call.Line())
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Result{ExitCode: -1}, fmt.Errorf("%s: %w", call.Name, ctx.Err())
		}
	}

	res := Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}
	if resp.Err != nil {
		return res, resp.Err
	}
	if resp.ExitCode != 0 {
		return res, &ExitError{Name: call.Name, Code: resp.ExitCode, Stderr: res.StderrString()}
	}
	return res, nil
}

func (m *MockRunner) match(line string) MockResponse {
	best, bestLen := MockResponse{}, -1
	for prefix, resp := range m.Responses {
		if (line == prefix || strings.HasPrefix(line, prefix+" ")) && len(prefix) > bestLen {
			best, bestLen = resp, len(prefix)
		}
	}
	return best
}
