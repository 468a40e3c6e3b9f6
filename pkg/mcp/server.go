// Package mcp serves roteiro's question answering and operator views as
// Model Context Protocol tools over stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/roteiro-ai/roteiro/pkg/gateway"
	"github.com/roteiro-ai/roteiro/pkg/logging"
	"github.com/roteiro-ai/roteiro/pkg/models"
	"github.com/roteiro-ai/roteiro/pkg/ratelimit"
	"github.com/roteiro-ai/roteiro/pkg/scope"
)

// ClientID is the rate limit identity of questions asked through MCP.
const ClientID = "mcp"

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, req gateway.Request) (gateway.Response, error)
}

// UsageSummarizer aggregates token usage.
type UsageSummarizer interface {
	Summary(ctx context.Context, persona string) ([]models.UsageSummary, error)
}

// CacheStatter provides cache statistics without coupling to a backend.
type CacheStatter interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// LimitStatus reports a client's rate limit counters.
type LimitStatus interface {
	Status(ctx context.Context, clientID string) (ratelimit.Usage, error)
	Limits() ratelimit.Limits
}

// AuditQuerier searches the audit log.
type AuditQuerier interface {
	Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error)
}

// Deps are the components exposed as tools. Gateway and Classifier are
// required; tools backed by a nil dependency report that it is not configured.
type Deps struct {
	Gateway    Asker
	Classifier *scope.Classifier
	Tracker    UsageSummarizer
	Cache      CacheStatter
	Limiter    LimitStatus
	Auditor    AuditQuerier
	Logger     *zap.Logger
}

// Server is a minimal MCP server speaking line-delimited JSON-RPC 2.0.
type Server struct {
	deps    Deps
	logger  *zap.Logger
	version string
	now     func() time.Time
}

// New creates a Server.
func New(deps Deps, version string) *Server {
	return &Server{
		deps:    deps,
		logger:  logging.OrNop(deps.Logger),
		version: version,
		now:     time.Now,
	}
}

// Run reads requests from r line by line and writes responses to w.
// It blocks until r is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, *errorFor(nil, CodeParseError, "parse error"))
			continue
		}

		if resp := s.dispatch(ctx, &req); resp != nil {
			s.writeResponse(w, *resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != jsonrpcVersion {
		return errorFor(req, CodeInvalidRequest, "jsonrpc must be 2.0")
	}

	switch req.Method {
	case "initialize":
		return resultFor(req, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "roteiro", Version: s.version},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return resultFor(req, struct{}{})
	case "tools/list":
		return resultFor(req, ToolsListResult{Tools: allTools})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		if req.IsNotification() {
			return nil
		}
		return errorFor(req, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorFor(req, CodeInvalidParams, "invalid params")
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return resultFor(req, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}

	s.logger.Debug("mcp tool call", zap.String("tool", params.Name))
	return resultFor(req, handler(ctx, s, params.Arguments))
}

func (s *Server) writeResponse(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("mcp marshal failed", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Error("mcp write failed", zap.Error(err))
	}
}
