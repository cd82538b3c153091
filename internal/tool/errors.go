package tool

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common tool errors.
var (
	// ErrUnknownTool indicates the call named a tool absent from the registry.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMissingParameter indicates a required argument was not supplied.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrTypeMismatch indicates an argument has the wrong JSON type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidEnum indicates an argument is outside its allowed value set.
	ErrInvalidEnum = errors.New("invalid enum value")

	// ErrTimeout indicates the handler exceeded its execution budget.
	ErrTimeout = errors.New("tool timed out")

	// ErrDuplicateTool indicates a second registration under the same name.
	ErrDuplicateTool = errors.New("duplicate tool name")

	// ErrInvalidDefault indicates a declared default does not satisfy its parameter.
	ErrInvalidDefault = errors.New("invalid default value")

	// ErrShuttingDown indicates the dispatcher no longer accepts calls.
	ErrShuttingDown = errors.New("dispatcher is shutting down")
)

// Kind classifies an error for callers and metrics.
type Kind string

const (
	KindUnknownTool      Kind = "unknown_tool"
	KindMissingParameter Kind = "missing_parameter"
	KindTypeMismatch     Kind = "type_mismatch"
	KindInvalidEnum      Kind = "invalid_enum"
	KindTimeout          Kind = "timeout"
	KindShuttingDown     Kind = "shutting_down"
	KindExternal         Kind = "external"
)

// KindOf maps err onto the error taxonomy. Anything not raised by the
// validator or dispatcher is an external-system failure.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrUnknownTool):
		return KindUnknownTool
	case errors.Is(err, ErrMissingParameter):
		return KindMissingParameter
	case errors.Is(err, ErrTypeMismatch):
		return KindTypeMismatch
	case errors.Is(err, ErrInvalidEnum):
		return KindInvalidEnum
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrShuttingDown):
		return KindShuttingDown
	default:
		return KindExternal
	}
}

// IsValidation reports whether err was produced by argument validation.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindMissingParameter, KindTypeMismatch, KindInvalidEnum:
		return true
	}
	return false
}

// UnknownToolError wraps ErrUnknownTool with the requested name.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %q", e.Name)
}

func (e *UnknownToolError) Unwrap() error { return ErrUnknownTool }

// MissingParameterError wraps ErrMissingParameter with the field path.
type MissingParameterError struct {
	Field string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter: %s", e.Field)
}

func (e *MissingParameterError) Unwrap() error { return ErrMissingParameter }

// TypeMismatchError wraps ErrTypeMismatch with expected and actual types.
type TypeMismatchError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch for parameter %s: expected %s, got %s", e.Field, e.Expected, e.Actual)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// InvalidEnumError wraps ErrInvalidEnum with the allowed values.
type InvalidEnumError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("invalid enum value for parameter %s: %q (allowed: %s)", e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

func (e *InvalidEnumError) Unwrap() error { return ErrInvalidEnum }

// TimeoutError wraps ErrTimeout with the tool and elapsed time.
type TimeoutError struct {
	Tool    string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out after %dms", e.Tool, e.Elapsed.Milliseconds())
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// ElapsedMs returns the elapsed time in milliseconds.
func (e *TimeoutError) ElapsedMs() int64 { return e.Elapsed.Milliseconds() }

// DuplicateToolError wraps ErrDuplicateTool with the conflicting name.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

func (e *DuplicateToolError) Unwrap() error { return ErrDuplicateTool }
