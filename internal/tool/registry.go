package tool

import (
	"errors"
	"fmt"
	"sync"
)

// Registry holds tool specs in registration order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	specs map[string]Spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds a spec. It fails on a duplicate name or on a default value
// that does not satisfy its own parameter.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return errors.New("tool name is required")
	}
	if err := checkDefaults("", spec.Parameters); err != nil {
		return fmt.Errorf("tool %s: %w", spec.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Name]; exists {
		return &DuplicateToolError{Name: spec.Name}
	}
	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// RegisterAll registers specs in order and stops at the first failure.
func (r *Registry) RegisterAll(specs ...Spec) error {
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the spec registered under name.
func (r *Registry) Get(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// List returns every spec in registration order.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func checkDefaults(prefix string, fields []Field) error {
	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		if f.Param == nil {
			return fmt.Errorf("parameter %s has no type", path)
		}
		if f.Default != nil {
			if _, err := checkValue(path, f.Param, cloneValue(f.Default)); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidDefault, err)
			}
		}
		if obj, ok := f.Param.(Object); ok {
			if err := checkDefaults(path, obj.Fields); err != nil {
				return err
			}
		}
	}
	return nil
}
