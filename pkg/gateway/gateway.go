// Package gateway answers chat questions: admission, cache, scope
// classification, persona prompting and the LLM call, degrading to a canned
// persona fallback whenever the LLM cannot answer.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/roteiro-ai/roteiro/pkg/audit"
	"github.com/roteiro-ai/roteiro/pkg/cache"
	"github.com/roteiro-ai/roteiro/pkg/llm"
	"github.com/roteiro-ai/roteiro/pkg/logging"
	"github.com/roteiro-ai/roteiro/pkg/models"
	"github.com/roteiro-ai/roteiro/pkg/persona"
	"github.com/roteiro-ai/roteiro/pkg/ratelimit"
	"github.com/roteiro-ai/roteiro/pkg/scope"
)

// ErrValidation wraps every rejected input.
var ErrValidation = errors.New("invalid request")

// Default question bounds, in characters after trimming.
const (
	DefaultMinLen  = 5
	DefaultMaxLen  = 1000
	DefaultTimeout = 30 * time.Second
)

// Limiter admits requests per client.
type Limiter interface {
	CheckAndConsume(ctx context.Context, clientID string) ratelimit.Result
}

// UsageRecorder stores token usage of successful LLM calls.
type UsageRecorder interface {
	Record(ctx context.Context, rec models.UsageRecord) error
}

// Auditor receives one metadata entry per answered question.
type Auditor interface {
	LogAsync(e models.AuditEntry)
}

// Deps are the collaborators of a Gateway. Classifier, Personas and LLM are
// required; the rest may be nil.
type Deps struct {
	Classifier *scope.Classifier
	Personas   *persona.Registry
	Limiter    Limiter
	Cache      cache.Cache
	LLM        llm.Client
	Tracker    UsageRecorder
	Auditor    Auditor
	Logger     *zap.Logger
}

// Request is one inbound question.
type Request struct {
	Question  string
	Persona   string
	ClientID  string
	RequestID string
}

// Response is what the caller shows the user.
type Response struct {
	Text      string
	Persona   persona.ID
	Cached    bool
	Fallback  bool
	InScope   bool
	Category  scope.Category
	Timestamp time.Time
}

// Gateway orchestrates a single question end to end. It is safe for concurrent use.
type Gateway struct {
	deps        Deps
	logger      *zap.Logger
	now         func() time.Time
	pick        persona.Picker
	timeout     time.Duration
	minLen      int
	maxLen      int
	temperature float32
	maxTokens   int
	system      string

	inflight singleflight.Group
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock sets the time source used for timestamps and latency.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithPicker sets how a fallback message is chosen from a persona's pool.
func WithPicker(pick persona.Picker) Option {
	return func(g *Gateway) { g.pick = pick }
}

// WithTimeout bounds each LLM call.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithQuestionBounds sets the accepted question length range.
func WithQuestionBounds(minLen, maxLen int) Option {
	return func(g *Gateway) {
		g.minLen = minLen
		g.maxLen = maxLen
	}
}

// WithGeneration sets the decoding temperature and output token budget.
func WithGeneration(temperature float32, maxTokens int) Option {
	return func(g *Gateway) {
		g.temperature = temperature
		g.maxTokens = maxTokens
	}
}

// WithSystemInstruction replaces the default system turn.
func WithSystemInstruction(s string) Option {
	return func(g *Gateway) {
		if s != "" {
			g.system = s
		}
	}
}

// New creates a Gateway.
func New(deps Deps, opts ...Option) *Gateway {
	g := &Gateway{
		deps:        deps,
		logger:      logging.OrNop(deps.Logger),
		now:         time.Now,
		pick:        persona.RandomPicker,
		timeout:     DefaultTimeout,
		minLen:      DefaultMinLen,
		maxLen:      DefaultMaxLen,
		temperature: 0.1,
		maxTokens:   1000,
		system:      persona.SystemInstruction,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.deps.Personas == nil {
		g.deps.Personas = persona.DefaultRegistry()
	}
	if g.deps.Classifier == nil {
		g.deps.Classifier = scope.New(scope.DefaultKeywords())
	}
	return g
}

// Personas returns the registry answering for this gateway.
func (g *Gateway) Personas() *persona.Registry { return g.deps.Personas }

// Ask answers one question. The only errors returned wrap ErrValidation or
// are a *ratelimit.LimitError; every LLM failure becomes a fallback response.
func (g *Gateway) Ask(ctx context.Context, req Request) (Response, error) {
	start := g.now()

	question := strings.TrimSpace(req.Question)
	p := g.deps.Personas.Get(req.Persona)
	_, clientPrefix := audit.HashClient(req.ClientID)

	if err := g.validate(question); err != nil {
		g.logger.Info("chat rejected",
			zap.String("request_id", req.RequestID),
			zap.String("client_id", clientPrefix),
			zap.String("persona", string(p.ID)),
			zap.Int("question_len", utf8.RuneCountInString(question)),
			zap.Error(err),
		)
		return Response{}, err
	}

	if g.deps.Limiter != nil {
		res := g.deps.Limiter.CheckAndConsume(ctx, req.ClientID)
		if !res.Allowed {
			g.logger.Info("chat rate limited",
				zap.String("request_id", req.RequestID),
				zap.String("client_id", clientPrefix),
				zap.String("persona", string(p.ID)),
				zap.Int("question_len", utf8.RuneCountInString(question)),
				zap.String("window", string(res.Window)),
			)
			return Response{}, &ratelimit.LimitError{Result: res}
		}
	}

	resp := Response{Persona: p.ID}

	if text, ok := g.cacheGet(ctx, p, question); ok {
		resp.Text = text
		// Hits skip classification, so InScope and Category stay unset.
		resp.Cached = true
	} else {
		d := g.deps.Classifier.Classify(question)
		resp.InScope = d.InScope
		resp.Category = d.Category

		text, err := g.complete(ctx, p, question, d)
		if err != nil {
			g.logger.Warn("llm call failed, answering with fallback",
				zap.String("request_id", req.RequestID),
				zap.String("persona", string(p.ID)),
				zap.Error(err),
			)
			resp.Text = persona.Fallback(p, g.pick)
			resp.Fallback = true
		} else {
			resp.Text = text
		}
	}

	resp.Timestamp = g.now().UTC()
	latency := resp.Timestamp.Sub(start)
	g.record(req, clientPrefix, question, resp, latency)
	return resp, nil
}

// validate checks the trimmed question length in characters.
func (g *Gateway) validate(question string) error {
	n := utf8.RuneCountInString(question)
	if n == 0 {
		return fmt.Errorf("%w: question is required", ErrValidation)
	}
	if n < g.minLen || n > g.maxLen {
		return fmt.Errorf("%w: question must be between %d and %d characters, got %d",
			ErrValidation, g.minLen, g.maxLen, n)
	}
	return nil
}

func (g *Gateway) cacheGet(ctx context.Context, p persona.Persona, question string) (string, bool) {
	if g.deps.Cache == nil {
		return "", false
	}
	return g.deps.Cache.Get(ctx, string(p.ID), question)
}

// complete calls the LLM once per persona and normalized question at a time.
// Concurrent identical misses share the call and its result.
func (g *Gateway) complete(ctx context.Context, p persona.Persona, question string, d scope.Decision) (string, error) {
	if g.deps.LLM == nil {
		return "", llm.ErrUnavailable
	}

	key := cache.Key(string(p.ID), question)
	v, err, _ := g.inflight.Do(key, func() (any, error) {
		bg := context.WithoutCancel(ctx)
		callCtx, cancel := context.WithTimeout(bg, g.timeout)
		defer cancel()

		out, err := g.deps.LLM.Complete(callCtx, llm.Request{
			System:      g.system,
			Prompt:      persona.Build(p, question, d),
			Temperature: g.temperature,
			MaxTokens:   g.maxTokens,
		})
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(out.Text)
		if text == "" {
			return "", llm.ErrEmptyResponse
		}

		if g.deps.Cache != nil {
			if err := g.deps.Cache.Put(bg, string(p.ID), question, text); err != nil {
				g.logger.Warn("cache put failed", zap.Error(err))
			}
		}
		g.trackUsage(bg, p, out)
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *Gateway) trackUsage(ctx context.Context, p persona.Persona, out llm.Response) {
	if g.deps.Tracker == nil {
		return
	}
	rec := models.UsageRecord{
		Persona:          string(p.ID),
		Provider:         out.Provider,
		Model:            out.Model,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
		TotalTokens:      out.Usage.TotalTokens,
		CreatedAt:        g.now().UTC(),
	}
	if err := g.deps.Tracker.Record(ctx, rec); err != nil {
		g.logger.Warn("usage tracking failed", zap.Error(err))
	}
}

// record emits the request log line and audit entry. Neither carries the
// question or answer text.
func (g *Gateway) record(req Request, clientPrefix, question string, resp Response, latency time.Duration) {
	questionLen := utf8.RuneCountInString(question)
	responseLen := utf8.RuneCountInString(resp.Text)

	g.logger.Info("chat",
		zap.String("request_id", req.RequestID),
		zap.String("client_id", clientPrefix),
		zap.String("persona", string(resp.Persona)),
		zap.Int("question_len", questionLen),
		zap.Int("response_len", responseLen),
		zap.Bool("cached", resp.Cached),
		zap.Bool("fallback", resp.Fallback),
		zap.Bool("in_scope", resp.InScope),
		zap.String("category", string(resp.Category)),
		zap.Duration("latency", latency),
	)

	if g.deps.Auditor == nil || req.RequestID == "" {
		return
	}
	hash, prefix := audit.HashClient(req.ClientID)
	g.deps.Auditor.LogAsync(models.AuditEntry{
		RequestID:    req.RequestID,
		ClientHash:   hash,
		ClientPrefix: prefix,
		Persona:      string(resp.Persona),
		QuestionLen:  questionLen,
		ResponseLen:  responseLen,
		Cached:       resp.Cached,
		Fallback:     resp.Fallback,
		InScope:      resp.InScope,
		Category:     string(resp.Category),
		Latency:      latency,
		CreatedAt:    resp.Timestamp,
	})
}
