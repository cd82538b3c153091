package tool

import (
	"fmt"
	"strings"
)

// ContentText is the only content kind the daemons emit.
const ContentText = "text"

// Content is one block of a result.
type Content struct {
	Kind string
	Text string
}

// Result is the outcome envelope of one tool call.
type Result struct {
	IsError bool
	Content []Content
}

// Text builds a successful single-block result.
func Text(text string) *Result {
	return &Result{Content: []Content{{Kind: ContentText, Text: text}}}
}

// Textf builds a successful result from a format string.
func Textf(format string, args ...any) *Result {
	return Text(fmt.Sprintf(format, args...))
}

// ErrorResult builds an error result carrying err's message verbatim.
func ErrorResult(err error) *Result {
	return ErrorText(err.Error())
}

// ErrorText builds an error result from a message.
func ErrorText(msg string) *Result {
	return &Result{IsError: true, Content: []Content{{Kind: ContentText, Text: msg}}}
}

// Text joins every text block.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		if c.Kind == ContentText {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}
