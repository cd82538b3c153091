package tool

import (
	"encoding/json"
	"time"
)

// Budgets for handler execution.
const (
	DefaultTimeout = 30 * time.Second
	SlowTimeout    = 300 * time.Second
)

// Spec declares a tool: its name, summary and accepted arguments.
// Specs are built once at startup and never mutated afterwards.
type Spec struct {
	Name        string
	Description string
	Parameters  []Field
	// Slow marks inherently slow operations (image pulls, health check loops).
	// They run under the slow budget instead of the default one.
	Slow bool
	// Timeout overrides both budgets when positive.
	Timeout time.Duration
}

// InputSchema renders the parameter list as a JSON Schema object.
// The root always carries "properties", even for tools without arguments.
func (s Spec) InputSchema() map[string]any {
	return objectSchema(s.Parameters)
}

// SchemaJSON returns InputSchema encoded as JSON. Map keys are emitted in
// sorted order so repeated calls produce identical bytes.
func (s Spec) SchemaJSON() (json.RawMessage, error) {
	return json.Marshal(s.InputSchema())
}

// Field returns the declared field with the given name.
func (s Spec) Field(name string) (Field, bool) {
	for _, f := range s.Parameters {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Budget returns the execution ceiling given the default and slow budgets.
func (s Spec) Budget(def, slow time.Duration) time.Duration {
	switch {
	case s.Timeout > 0:
		return s.Timeout
	case s.Slow:
		return slow
	default:
		return def
	}
}
