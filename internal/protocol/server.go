package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joss/mcpd/internal/logging"
	"github.com/joss/mcpd/internal/tool"
)

// Dispatcher is the call router the server forwards tools/call to.
type Dispatcher interface {
	Registry() *tool.Registry
	Call(ctx context.Context, name string, args map[string]any) (*tool.Result, error)
}

// Info identifies the daemon in the initialize handshake.
type Info struct {
	Name    string
	Version string
}

type capabilities struct {
	Tools struct {
		ListChanged bool `json:"listChanged"`
	} `json:"tools"`
}

type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ClientInfo      mcp.Implementation `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    capabilities       `json:"capabilities"`
	ServerInfo      mcp.Implementation `json:"serverInfo"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Server reads frames, answers them one at a time, and writes responses in
// the order requests arrived.
type Server struct {
	info Info
	d    Dispatcher
	enc  *Encoder
	dec  *Decoder
	log  *logging.Logger
}

// NewServer creates a server speaking over stdin/stdout.
func NewServer(info Info, d Dispatcher) *Server {
	return NewServerWithIO(info, d, os.Stdin, os.Stdout)
}

// NewServerWithIO creates a server with custom IO (for testing).
func NewServerWithIO(info Info, d Dispatcher, r io.Reader, w io.Writer) *Server {
	return &Server{
		info: info,
		d:    d,
		enc:  NewEncoder(w),
		dec:  NewDecoder(r),
		log:  logging.New("protocol"),
	}
}

type frame struct {
	line []byte
	err  error
}

// Serve runs the message loop until the input ends or ctx is cancelled.
// EOF on the input is a clean stop and returns nil.
func (s *Server) Serve(ctx context.Context) error {
	frames := make(chan frame)
	stop := make(chan struct{})
	defer close(stop)

	logging.SafeGo("protocol", func() {
		for {
			line, err := s.dec.Next()
			select {
			case frames <- frame{line: line, err: err}:
			case <-stop:
				return
			}
			if err != nil && !errors.Is(err, ErrFrameTooLarge) {
				return
			}
		}
	})

	// Calls already read run to completion or to their budget; ctx only
	// stops the loop from taking new frames.
	callCtx := context.WithoutCancel(ctx)

	s.log.Info("serve_started", map[string]any{"server": s.info.Name})
	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case f := <-frames:
			if errors.Is(f.err, io.EOF) {
				s.log.Info("input_closed", nil)
				return nil
			}
			var resp *Response
			switch {
			case errors.Is(f.err, ErrFrameTooLarge):
				s.log.Warn("frame_too_large", map[string]any{"limit": MaxFrameSize}, f.err)
				resp = errorResponse(nullID, mcp.INVALID_REQUEST, "invalid request: %v", f.err)
			case f.err != nil:
				return fmt.Errorf("read frame: %w", f.err)
			default:
				resp = s.Handle(callCtx, f.line)
			}
			if resp == nil {
				continue
			}
			if err := s.enc.Encode(resp); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
		}
	}
}

// Handle answers one raw frame. It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, line []byte) *Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Warn("frame_invalid", map[string]any{"bytes": len(line)}, err)
		return errorResponse(nullID, mcp.PARSE_ERROR, "parse error: %v", err)
	}

	if req.IsNotification() {
		s.log.Debug("notification", map[string]any{"method": req.Method})
		return nil
	}
	if req.JSONRPC != mcp.JSONRPC_VERSION || req.Method == "" {
		return errorResponse(req.ID, mcp.INVALID_REQUEST, "invalid request")
	}

	switch mcp.MCPMethod(req.Method) {
	case mcp.MethodInitialize:
		return s.initialize(req)
	case mcp.MethodPing:
		return resultResponse(req.ID, struct{}{})
	case mcp.MethodToolsList:
		tools, err := ListTools(s.d.Registry())
		if err != nil {
			return errorResponse(req.ID, mcp.INTERNAL_ERROR, "%v", err)
		}
		return resultResponse(req.ID, mcp.ListToolsResult{Tools: tools})
	case mcp.MethodToolsCall:
		return s.callTool(ctx, req)
	default:
		s.log.Warn("method_unknown", map[string]any{"method": req.Method}, nil)
		return errorResponse(req.ID, mcp.METHOD_NOT_FOUND, "method not found: %s", req.Method)
	}
}

func (s *Server) initialize(req Request) *Response {
	var p initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, "invalid params: %v", err)
		}
	}
	s.log.Info("initialized", map[string]any{
		"client":           p.ClientInfo.Name,
		"client_version":   p.ClientInfo.Version,
		"protocol_version": p.ProtocolVersion,
	})

	return resultResponse(req.ID, initializeResult{
		ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
		ServerInfo:      mcp.Implementation{Name: s.info.Name, Version: s.info.Version},
	})
}

func (s *Server) callTool(ctx context.Context, req Request) *Response {
	var p callParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, mcp.INVALID_PARAMS, "invalid params: %v", err)
	}
	if p.Name == "" {
		return errorResponse(req.ID, mcp.INVALID_PARAMS, "invalid params: missing tool name")
	}

	ctx = logging.WithCallID(ctx, string(req.ID))
	res, _ := s.d.Call(ctx, p.Name, p.Arguments)
	return resultResponse(req.ID, CallResult(res))
}

// ListTools renders the registry in registration order.
func ListTools(reg *tool.Registry) ([]mcp.Tool, error) {
	specs := reg.List()
	tools := make([]mcp.Tool, 0, len(specs))
	for _, spec := range specs {
		schema, err := spec.SchemaJSON()
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", spec.Name, err)
		}
		tools = append(tools, mcp.NewToolWithRawSchema(spec.Name, spec.Description, schema))
	}
	return tools, nil
}

// CallResult converts a dispatcher result into the MCP envelope.
func CallResult(res *tool.Result) *mcp.CallToolResult {
	out := &mcp.CallToolResult{Content: []mcp.Content{}}
	if res == nil {
		return out
	}
	out.IsError = res.IsError
	for _, c := range res.Content {
		out.Content = append(out.Content, mcp.NewTextContent(c.Text))
	}
	return out
}
