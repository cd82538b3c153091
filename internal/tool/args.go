package tool

import "fmt"

// Args is a validated argument object. Getters return the zero value when
// the key is absent or holds another type.
type Args map[string]any

// Has reports whether key is present.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// String extracts a string value.
func (a Args) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Int extracts an int value.
func (a Args) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float extracts a float64 value.
func (a Args) Float(key string) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Bool extracts a bool value.
func (a Args) Bool(key string) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return false
}

// Map extracts an object value.
func (a Args) Map(key string) map[string]any {
	if v, ok := a[key].(map[string]any); ok {
		return v
	}
	return nil
}

// Object extracts an object value as Args.
func (a Args) Object(key string) Args {
	return Args(a.Map(key))
}

// Slice extracts an array value.
func (a Args) Slice(key string) []any {
	if v, ok := a[key].([]any); ok {
		return v
	}
	return nil
}

// Strings extracts an array value, formatting non-string elements.
func (a Args) Strings(key string) []string {
	items := a.Slice(key)
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
			continue
		}
		out = append(out, fmt.Sprint(item))
	}
	return out
}

// StringMap extracts an object value whose entries are formatted as strings.
func (a Args) StringMap(key string) map[string]string {
	m := a.Map(key)
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
