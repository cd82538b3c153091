// Package ident checks caller-supplied identifiers before they are
// interpolated into SQL text or container engine arguments.
package ident

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalid indicates an identifier failed its allow-list.
var ErrInvalid = errors.New("invalid identifier")

// InvalidError wraps ErrInvalid with the rule that rejected the value.
type InvalidError struct {
	Kind  string
	Value string
	Rule  string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.Value, e.Rule)
}

func (e *InvalidError) Unwrap() error { return ErrInvalid }

// Rule is an identifier allow-list.
type Rule struct {
	Kind    string
	Regex   *regexp.Regexp
	MaxLen  int
	Message string
}

var (
	// SQL accepts a bare SQL identifier, optionally schema-qualified.
	SQL = Rule{
		Kind:    "SQL identifier",
		Regex:   regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`),
		MaxLen:  128,
		Message: "use letters, digits, underscore or $, optionally schema-qualified",
	}

	// ContainerName accepts names the container engines allow.
	ContainerName = Rule{
		Kind:    "container name",
		Regex:   regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`),
		MaxLen:  255,
		Message: "start with a letter or digit, then letters, digits, '_', '.' or '-'",
	}

	// ImageRef accepts an image reference with optional registry, tag and digest.
	ImageRef = Rule{
		Kind:    "image reference",
		Regex:   regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_./:@-]*$`),
		MaxLen:  512,
		Message: "no whitespace or shell metacharacters",
	}
)

// Check returns an error when value does not satisfy the rule.
func (r Rule) Check(value string) error {
	switch {
	case value == "":
		return &InvalidError{Kind: r.Kind, Value: value, Rule: "must not be empty"}
	case r.MaxLen > 0 && len(value) > r.MaxLen:
		return &InvalidError{Kind: r.Kind, Value: value, Rule: fmt.Sprintf("longer than %d characters", r.MaxLen)}
	case !r.Regex.MatchString(value):
		return &InvalidError{Kind: r.Kind, Value: value, Rule: r.Message}
	}
	return nil
}

// Valid reports whether value satisfies the rule.
func (r Rule) Valid(value string) bool {
	return r.Check(value) == nil
}

// Quoting style of a SQL dialect.
type Quoting int

const (
	DoubleQuote Quoting = iota
	Backtick
)

// Quote checks name against SQL and quotes each dotted part.
func Quote(name string, q Quoting) (string, error) {
	if err := SQL.Check(name); err != nil {
		return "", err
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		switch q {
		case Backtick:
			parts[i] = "`" + p + "`"
		default:
			parts[i] = `"` + p + `"`
		}
	}
	return strings.Join(parts, "."), nil
}
