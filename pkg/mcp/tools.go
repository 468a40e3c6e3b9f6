package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/roteiro-ai/roteiro/pkg/gateway"
	"github.com/roteiro-ai/roteiro/pkg/models"
	"github.com/roteiro-ai/roteiro/pkg/ratelimit"
)

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"roteiro_ask":          handleAsk,
	"roteiro_classify":     handleClassify,
	"roteiro_usage":        handleUsage,
	"roteiro_cache_stats":  handleCacheStats,
	"roteiro_rate_limit":   handleRateLimit,
	"roteiro_audit_search": handleAuditSearch,
}

var allTools = []ToolDefinition{
	{
		Name:        "roteiro_ask",
		Description: "Ask a question about PQT-U dispensation and get the persona's answer.",
		InputSchema: objectSchema(map[string]Property{
			"question": stringArg("The question, 5 to 1000 characters"),
			"persona": {
				Type:        "string",
				Description: "Answer voice (default technical)",
				Enum:        []string{"technical", "empathetic"},
			},
		}, "question"),
	},
	{
		Name:        "roteiro_classify",
		Description: "Show whether a question is in the PQT-U domain and its category.",
		InputSchema: objectSchema(map[string]Property{
			"question": stringArg("The question to classify"),
		}, "question"),
	},
	{
		Name:        "roteiro_usage",
		Description: "Show LLM token usage per persona and model.",
		InputSchema: objectSchema(map[string]Property{
			"persona": stringArg("Filter by persona (optional)"),
		}),
	},
	{
		Name:        "roteiro_cache_stats",
		Description: "Show response cache statistics (entries, hits, misses, hit rate).",
		InputSchema: objectSchema(nil),
	},
	{
		Name:        "roteiro_rate_limit",
		Description: "Show a client's hourly and daily question counters.",
		InputSchema: objectSchema(map[string]Property{
			"client_id": stringArg("Client id, usually the IP address"),
		}, "client_id"),
	},
	{
		Name:        "roteiro_audit_search",
		Description: "Search answered-question metadata. Question and answer text are never stored.",
		InputSchema: objectSchema(map[string]Property{
			"persona":       stringArg("Filter by persona (optional)"),
			"since":         stringArg("Start date in YYYY-MM-DD format (optional)"),
			"fallback_only": boolArg("Only fallback answers (optional)"),
		}),
	},
}

type askArgs struct {
	Question string `json:"question"`
	Persona  string `json:"persona"`
}

func handleAsk(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args askArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}

	resp, err := s.deps.Gateway.Ask(ctx, gateway.Request{
		Question:  args.Question,
		Persona:   args.Persona,
		ClientID:  ClientID,
		RequestID: uuid.NewString(),
	})
	if err != nil {
		var limited *ratelimit.LimitError
		if errors.As(err, &limited) {
			return errorResult("Rate limited: " + limited.Error())
		}
		return errorResult(err.Error())
	}
	return textResult(formatAnswer(resp))
}

type questionArgs struct {
	Question string `json:"question"`
}

func handleClassify(_ context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args questionArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	if args.Question == "" {
		return errorResult("question is required")
	}
	return textResult(formatDecision(s.deps.Classifier.Classify(args.Question)))
}

type personaArgs struct {
	Persona string `json:"persona"`
}

func handleUsage(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.deps.Tracker == nil {
		return textResult("Usage tracking is not configured.")
	}
	var args personaArgs
	_ = decodeArgs(raw, &args)

	rows, err := s.deps.Tracker.Summary(ctx, args.Persona)
	if err != nil {
		return errorResult("Error fetching usage: " + err.Error())
	}
	return textResult(formatSummary(rows))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.deps.Cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

type clientArgs struct {
	ClientID string `json:"client_id"`
}

func handleRateLimit(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.deps.Limiter == nil {
		return textResult("Rate limiting is not configured.")
	}
	var args clientArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	if args.ClientID == "" {
		return errorResult("client_id is required")
	}

	u, err := s.deps.Limiter.Status(ctx, args.ClientID)
	if err != nil {
		return errorResult("Error fetching rate limit status: " + err.Error())
	}
	return textResult(formatLimitStatus(args.ClientID, u, s.deps.Limiter.Limits(), s.now()))
}

type auditSearchArgs struct {
	Persona      string `json:"persona"`
	Since        string `json:"since"`
	FallbackOnly bool   `json:"fallback_only"`
}

func handleAuditSearch(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.deps.Auditor == nil {
		return textResult("Audit logging is not configured.")
	}
	var args auditSearchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}

	opts := models.AuditQueryOpts{
		Persona:      args.Persona,
		FallbackOnly: args.FallbackOnly,
		Limit:        50,
	}
	if args.Since != "" {
		t, err := time.Parse(time.DateOnly, args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	entries, err := s.deps.Auditor.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching audit log: " + err.Error())
	}
	return textResult(formatAuditEntries(entries))
}
