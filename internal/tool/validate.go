package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Validate checks args against spec field by field, in declared order, and
// returns a normalized copy. Absent optional fields receive their default.
// A JSON null on an optional field counts as absent. Numbers come back as
// float64, integers as int64. Fields the spec does not declare pass through.
func Validate(spec Spec, args map[string]any) (Args, error) {
	out := make(Args, len(args)+len(spec.Parameters))
	for k, v := range args {
		out[k] = v
	}
	if err := validateFields("", spec.Parameters, out); err != nil {
		return nil, err
	}
	return out, nil
}

func validateFields(prefix string, fields []Field, obj map[string]any) error {
	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		v, present := obj[f.Name]
		if present && v == nil && !f.Required && !accepts(f.Param, TypeNull) {
			present = false
			delete(obj, f.Name)
		}
		if !present {
			if f.Required {
				return &MissingParameterError{Field: path}
			}
			if f.Default != nil {
				obj[f.Name] = cloneValue(f.Default)
			}
			continue
		}
		norm, err := checkValue(path, f.Param, v)
		if err != nil {
			return err
		}
		obj[f.Name] = norm
	}
	return nil
}

func checkValue(path string, p Param, v any) (any, error) {
	switch p := p.(type) {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Enum:
		s, ok := v.(string)
		if !ok {
			break
		}
		if !slices.Contains(p.Values, s) {
			return nil, &InvalidEnumError{Field: path, Value: s, Allowed: p.Values}
		}
		return s, nil
	case Number:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case Integer:
		// Whole numbers outside int64 are a mismatch, not a wrapped value.
		if f, ok := toFloat(v); ok && f == math.Trunc(f) && f >= math.MinInt64 && f < -math.MinInt64 {
			return int64(f), nil
		}
	case Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Null:
		if v == nil {
			return nil, nil
		}
	case Array:
		items, ok := toSlice(v)
		if !ok {
			break
		}
		out := make([]any, len(items))
		for i, item := range items {
			if p.Items == nil {
				out[i] = item
				continue
			}
			norm, err := checkValue(fmt.Sprintf("%s[%d]", path, i), p.Items, item)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	case Object:
		m, ok := v.(map[string]any)
		if !ok {
			break
		}
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		if err := validateFields(path, p.Fields, out); err != nil {
			return nil, err
		}
		return out, nil
	case Union:
		for _, opt := range p.Of {
			if matchesType(opt, v) {
				return checkValue(path, opt, v)
			}
		}
	}
	return nil, &TypeMismatchError{Field: path, Expected: expectedTypes(p), Actual: typeName(v)}
}

// matchesType reports whether v has the top-level JSON type of p.
func matchesType(p Param, v any) bool {
	actual := typeName(v)
	for _, t := range p.Types() {
		if string(t) == actual {
			return true
		}
		if t == TypeInteger && actual == string(TypeNumber) {
			f, _ := toFloat(v)
			return f == math.Trunc(f)
		}
	}
	return false
}

func accepts(p Param, t Type) bool {
	return slices.Contains(p.Types(), t)
}

func expectedTypes(p Param) string {
	types := p.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, "|")
}

func typeName(v any) string {
	switch v := v.(type) {
	case nil:
		return string(TypeNull)
	case string:
		return string(TypeString)
	case bool:
		return string(TypeBoolean)
	case map[string]any:
		return string(TypeObject)
	case []any, []string:
		return string(TypeArray)
	default:
		if _, ok := toFloat(v); ok {
			return string(TypeNumber)
		}
		return fmt.Sprintf("%T", v)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}

// cloneValue deep-copies maps and slices so defaults are never shared
// between calls.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = val
		}
		return out
	default:
		return v
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
