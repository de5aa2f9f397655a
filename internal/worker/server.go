package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/toolbridge/toolbridge/internal/mcp"
)

const (
	serverName    = "toolbridge-worker"
	serverVersion = "1.0.0"
)

// incoming is a decoded request frame from the bridge.
type incoming struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// outgoing is a response frame to the bridge.
type outgoing struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *mcp.RPCError `json:"error,omitempty"`
}

// Server answers bridge requests over a framed pipe pair.
type Server struct {
	reg *Registry
	in  *bufio.Reader
	out *mcp.FrameWriter
}

// NewServer wraps a request source and response sink, usually stdin/stdout.
func NewServer(r io.Reader, w io.Writer, reg *Registry) *Server {
	return &Server{
		reg: reg,
		in:  bufio.NewReader(r),
		out: mcp.NewFrameWriter(w),
	}
}

// Serve processes requests until the input stream closes. EOF is the normal
// shutdown signal (the bridge closed our stdin) and returns nil so the
// process can exit with code 0.
func (s *Server) Serve(ctx context.Context) error {
	for {
		frame, err := mcp.ReadFrame(s.in)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
			log.Info().Msg("input closed, shutting down")
			return nil
		}
		if err != nil {
			return err
		}

		var req incoming
		if err := json.Unmarshal(frame, &req); err != nil {
			log.Warn().Err(err).Msg("undecodable frame")
			_ = s.reply(outgoing{JSONRPC: "2.0", Error: &mcp.RPCError{
				Code: mcp.CodeParseError, Message: "invalid JSON",
			}})
			continue
		}
		if req.ID == "" {
			// Notification; nothing expects an answer.
			continue
		}

		resp := s.dispatch(ctx, req)
		if err := s.reply(resp); err != nil {
			return err
		}
	}
}

func (s *Server) reply(resp outgoing) error {
	resp.JSONRPC = "2.0"
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.out.WriteFrame(payload)
}

func (s *Server) dispatch(ctx context.Context, req incoming) outgoing {
	resp := outgoing{ID: req.ID}

	switch req.Method {
	case mcp.MethodInitialize:
		resp.Result = mcp.InitializeResult{
			ProtocolVersion: "2024-11-05",
			Capabilities: map[string]interface{}{
				"tools":     map[string]interface{}{},
				"resources": map[string]interface{}{},
				"prompts":   map[string]interface{}{},
			},
			ServerInfo: mcp.ServerInfo{Name: serverName, Version: serverVersion},
		}

	case mcp.MethodToolsList:
		resp.Result = map[string]interface{}{"tools": s.reg.Tools()}

	case mcp.MethodToolsCall:
		var params struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			resp.Error = &mcp.RPCError{Code: mcp.CodeInvalidParams, Message: "tools/call requires a name"}
			break
		}
		result, known := s.reg.Call(ctx, params.Name, params.Arguments)
		if !known {
			resp.Error = &mcp.RPCError{Code: mcp.CodeUnknownEntity, Message: "unknown tool: " + params.Name}
			break
		}
		if result.IsError {
			log.Warn().Str("tool", params.Name).Str("error", result.Text()).Msg("tool execution failed")
		}
		resp.Result = result

	case mcp.MethodResourcesList:
		resources, err := s.reg.Resources(ctx)
		if err != nil {
			resp.Error = &mcp.RPCError{Code: mcp.CodeInternalError, Message: err.Error()}
			break
		}
		if resources == nil {
			resources = []mcp.ResourceDescriptor{}
		}
		resp.Result = map[string]interface{}{"resources": resources}

	case mcp.MethodResourcesRead:
		var params struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
			resp.Error = &mcp.RPCError{Code: mcp.CodeInvalidParams, Message: "resources/read requires a uri"}
			break
		}
		result, known := s.reg.ReadResource(ctx, params.URI)
		if !known {
			resp.Error = &mcp.RPCError{Code: mcp.CodeUnknownEntity, Message: "unknown resource: " + params.URI}
			break
		}
		resp.Result = result

	case mcp.MethodPromptsList:
		resp.Result = map[string]interface{}{"prompts": s.reg.Prompts()}

	case mcp.MethodPromptsGet:
		var params struct {
			Name      string            `json:"name"`
			Arguments map[string]string `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			resp.Error = &mcp.RPCError{Code: mcp.CodeInvalidParams, Message: "prompts/get requires a name"}
			break
		}
		result, known, err := s.reg.GetPrompt(ctx, params.Name, params.Arguments)
		if !known {
			resp.Error = &mcp.RPCError{Code: mcp.CodeUnknownEntity, Message: "unknown prompt: " + params.Name}
			break
		}
		if err != nil {
			resp.Error = &mcp.RPCError{Code: mcp.CodeInternalError, Message: err.Error()}
			break
		}
		resp.Result = result

	default:
		resp.Error = &mcp.RPCError{Code: mcp.CodeMethodNotFound, Message: "unknown method: " + req.Method}
	}
	return resp
}
