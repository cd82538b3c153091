// Package protocol implements the stdio transport of the tool daemons.
// Frames are newline-delimited JSON-RPC 2.0 messages carrying the MCP
// initialize, ping, tools/list and tools/call methods.
//
//	client ──stdin──▶ Decoder ─▶ Server ─▶ dispatch.Dispatcher
//	client ◀─stdout── Encoder ◀─┘
//
// Stdout carries nothing but frames; all logging goes to stderr.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

// MaxFrameSize bounds a single request line.
const MaxFrameSize = 16 << 20

// ErrFrameTooLarge is returned by Decoder.Next for lines over MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds 16 MiB")

// nullID is the id used when a request could not be parsed.
var nullID = json.RawMessage("null")

// Request is an incoming JSON-RPC frame. A request without an id is a
// notification and never gets a response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the frame carries no id.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is an outgoing JSON-RPC frame. The id is echoed byte for byte.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

func resultResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: mcp.JSONRPC_VERSION, ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, format string, args ...any) *Response {
	if len(id) == 0 {
		id = nullID
	}
	return &Response{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error:   &RPCError{Code: code, Message: fmt.Sprintf(format, args...)},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Encoder/Decoder for streaming JSON lines
// ─────────────────────────────────────────────────────────────────────────────

// Encoder writes responses as JSON lines.
type Encoder struct {
	w  io.Writer
	mu sync.Mutex
}

// NewEncoder creates an encoder for the given writer.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes a response as a single JSON line.
func (e *Encoder) Encode(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, err = fmt.Fprintf(e.w, "%s\n", data)
	return err
}

// Decoder reads raw request lines.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a decoder for the given reader.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next non-empty line. The slice is owned by the caller.
// A line over MaxFrameSize is skipped up to its newline and reported as
// ErrFrameTooLarge; the decoder stays usable afterwards. It returns io.EOF
// once the reader is exhausted.
func (d *Decoder) Next() ([]byte, error) {
	for {
		line, err := d.readLine()
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			return line, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (d *Decoder) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		n := len(buf) + len(chunk)
		if err == nil {
			n--
		}
		if n > MaxFrameSize {
			if errors.Is(err, bufio.ErrBufferFull) {
				if derr := d.discardLine(); derr != nil && !errors.Is(derr, io.EOF) {
					return nil, derr
				}
			}
			return nil, ErrFrameTooLarge
		}
		buf = append(buf, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return buf, err
	}
}

func (d *Decoder) discardLine() error {
	for {
		_, err := d.r.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}
