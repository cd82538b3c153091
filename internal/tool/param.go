package tool

// Type names a JSON value type a parameter can accept.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeNull    Type = "null"
)

// Param is the closed set of parameter shapes understood by the validator.
// The unexported method keeps implementations inside this package so that
// checkValue can switch over every variant.
type Param interface {
	// Types lists the JSON types the parameter accepts.
	Types() []Type
	isParam()
}

// Field binds a named argument to its parameter shape.
type Field struct {
	Name        string
	Description string
	Param       Param
	Required    bool
	// Default is substituted when the field is absent and not required.
	Default any
}

// String accepts any JSON string.
type String struct{}

// Number accepts any JSON number.
type Number struct{}

// Integer accepts JSON numbers without a fractional part.
type Integer struct{}

// Boolean accepts true or false.
type Boolean struct{}

// Null accepts only JSON null.
type Null struct{}

// Enum accepts a string from a closed set.
type Enum struct {
	Values []string
}

// Array accepts a JSON array. A nil Items accepts elements of any type.
type Array struct {
	Items Param
}

// Object accepts a JSON object. Declared fields are validated; undeclared
// fields pass through unchanged.
type Object struct {
	Fields []Field
}

// Union accepts a value matching any of its options, tried in order.
type Union struct {
	Of []Param
}

func (String) Types() []Type  { return []Type{TypeString} }
func (Number) Types() []Type  { return []Type{TypeNumber} }
func (Integer) Types() []Type { return []Type{TypeInteger} }
func (Boolean) Types() []Type { return []Type{TypeBoolean} }
func (Null) Types() []Type    { return []Type{TypeNull} }
func (Enum) Types() []Type    { return []Type{TypeString} }
func (Array) Types() []Type   { return []Type{TypeArray} }
func (Object) Types() []Type  { return []Type{TypeObject} }

func (u Union) Types() []Type {
	var out []Type
	seen := make(map[Type]bool)
	for _, p := range u.Of {
		for _, t := range p.Types() {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func (String) isParam()  {}
func (Number) isParam()  {}
func (Integer) isParam() {}
func (Boolean) isParam() {}
func (Null) isParam()    {}
func (Enum) isParam()    {}
func (Array) isParam()   {}
func (Object) isParam()  {}
func (Union) isParam()   {}

// AnyValue accepts every JSON value.
func AnyValue() Union {
	return Union{Of: []Param{String{}, Number{}, Boolean{}, Object{}, Array{}, Null{}}}
}

// StringList is an array of strings.
func StringList() Array {
	return Array{Items: String{}}
}

// schemaOf renders p as a JSON Schema fragment.
func schemaOf(p Param) map[string]any {
	switch p := p.(type) {
	case Enum:
		values := make([]string, len(p.Values))
		copy(values, p.Values)
		return map[string]any{"type": string(TypeString), "enum": values}
	case Array:
		s := map[string]any{"type": string(TypeArray)}
		if p.Items != nil {
			s["items"] = schemaOf(p.Items)
		}
		return s
	case Object:
		if len(p.Fields) == 0 {
			return map[string]any{"type": string(TypeObject)}
		}
		return objectSchema(p.Fields)
	case Union:
		opts := make([]map[string]any, 0, len(p.Of))
		simple := true
		for _, o := range p.Of {
			s := schemaOf(o)
			if len(s) != 1 {
				simple = false
			}
			opts = append(opts, s)
		}
		if simple {
			types := make([]string, 0, len(opts))
			for _, s := range opts {
				types = append(types, s["type"].(string))
			}
			return map[string]any{"type": types}
		}
		anyOf := make([]any, len(opts))
		for i, s := range opts {
			anyOf[i] = s
		}
		return map[string]any{"anyOf": anyOf}
	default:
		return map[string]any{"type": string(p.Types()[0])}
	}
}

func objectSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	var required []string
	for _, f := range fields {
		s := schemaOf(f.Param)
		if f.Description != "" {
			s["description"] = f.Description
		}
		if f.Default != nil {
			s["default"] = f.Default
		}
		props[f.Name] = s
		if f.Required {
			required = append(required, f.Name)
		}
	}
	s := map[string]any{
		"type":       string(TypeObject),
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
