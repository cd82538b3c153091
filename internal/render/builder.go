package render

import (
	"strings"

	"github.com/joss/mcpd/internal/tool"
)

// Builder accumulates handler output in memory.
type Builder struct {
	*Writer
	sb *strings.Builder
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	sb := &strings.Builder{}
	return &Builder{Writer: NewWriter(sb), sb: sb}
}

// String returns the accumulated text without the trailing newline.
func (b *Builder) String() string {
	return strings.TrimRight(b.sb.String(), "\n")
}

// Len returns the number of bytes written so far.
func (b *Builder) Len() int {
	return b.sb.Len()
}

// Result wraps the accumulated text in a successful tool result.
func (b *Builder) Result() *tool.Result {
	return tool.Text(b.String())
}
