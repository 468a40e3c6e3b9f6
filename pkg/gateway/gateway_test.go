package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roteiro-ai/roteiro/pkg/cache"
	"github.com/roteiro-ai/roteiro/pkg/llm"
	"github.com/roteiro-ai/roteiro/pkg/models"
	"github.com/roteiro-ai/roteiro/pkg/persona"
	"github.com/roteiro-ai/roteiro/pkg/ratelimit"
	"github.com/roteiro-ai/roteiro/pkg/scope"
)

type fakeLLM struct {
	mu      sync.Mutex
	calls   atomic.Int32
	text    string
	err     error
	release chan struct{}
	prompts []string
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		}
	}
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{
		Text:     f.text,
		Model:    "fake-model",
		Provider: "fake",
		Usage:    models.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type countingLimiter struct {
	calls atomic.Int32
	deny  bool
}

func (c *countingLimiter) CheckAndConsume(_ context.Context, _ string) ratelimit.Result {
	c.calls.Add(1)
	if c.deny {
		return ratelimit.Result{Allowed: false, Window: ratelimit.Hourly, Reason: "limite por hora"}
	}
	return ratelimit.Result{Allowed: true}
}

type countingCache struct {
	cache.Cache
	gets atomic.Int32
}

func (c *countingCache) Get(ctx context.Context, p, q string) (string, bool) {
	c.gets.Add(1)
	return c.Cache.Get(ctx, p, q)
}

type memTracker struct {
	mu   sync.Mutex
	recs []models.UsageRecord
}

func (m *memTracker) Record(_ context.Context, rec models.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

type memAuditor struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (m *memAuditor) LogAsync(e models.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGateway(t *testing.T, model llm.Client, opts ...Option) (*Gateway, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	g := New(Deps{
		Classifier: scope.New(scope.DefaultKeywords()),
		Personas:   persona.DefaultRegistry(),
		Limiter:    ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.DefaultLimits(), ratelimit.WithClock(clk.Now)),
		Cache:      cache.NewMemory(cache.DefaultTTL, 0, cache.WithClock(clk.Now)),
		LLM:        model,
	}, append([]Option{WithClock(clk.Now), WithPicker(persona.SeededPicker(1))}, opts...)...)
	return g, clk
}

func TestAskAnswersAndCaches(t *testing.T) {
	model := &fakeLLM{text: "[RESPOSTA TÉCNICA] 600 mg uma vez ao mês."}
	g, _ := newTestGateway(t, model)
	ctx := context.Background()

	first, err := g.Ask(ctx, Request{Question: "Qual a dose de rifampicina para adultos?", Persona: "technical", ClientID: "c1"})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.False(t, first.Fallback)
	assert.True(t, first.InScope)
	assert.Equal(t, scope.CategoryDosing, first.Category)
	assert.Equal(t, persona.Technical, first.Persona)
	assert.Equal(t, model.text, first.Text)

	second, err := g.Ask(ctx, Request{Question: "  qual a dose de RIFAMPICINA  para adultos? ", Persona: "technical", ClientID: "c1"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestAskDomainPromptHasTechnicalSections(t *testing.T) {
	model := &fakeLLM{text: "ok"}
	g, _ := newTestGateway(t, model)

	_, err := g.Ask(context.Background(), Request{Question: "Qual a dose de rifampicina para adultos?", Persona: "technical"})
	require.NoError(t, err)

	prompt := model.lastPrompt()
	for _, label := range []string{"RESPOSTA", "PROTOCOLO/REFERÊNCIA", "VALIDAÇÃO FARMACOLÓGICA", "CONSIDERAÇÕES CLÍNICAS"} {
		assert.Contains(t, prompt, label)
	}
	assert.True(t, strings.HasSuffix(strings.TrimSpace(prompt), "Qual a dose de rifampicina para adultos?"))
}

func TestAskOutOfScopeUsesLimitationPrompt(t *testing.T) {
	model := &fakeLLM{text: "Desculpe, só posso falar sobre a PQT-U."}
	g, _ := newTestGateway(t, model)

	resp, err := g.Ask(context.Background(), Request{Question: "Como tratar diabetes?", Persona: "technical"})
	require.NoError(t, err)
	assert.False(t, resp.InScope)
	assert.Equal(t, model.text, resp.Text)

	prompt := model.lastPrompt()
	assert.Contains(t, prompt, "FORA da sua área")
	assert.NotContains(t, prompt, "VALIDAÇÃO FARMACOLÓGICA")
}

func TestAskFallbackOnLLMFailure(t *testing.T) {
	model := &fakeLLM{err: errors.New("connection refused")}
	g, _ := newTestGateway(t, model)
	ctx := context.Background()

	for _, id := range []persona.ID{persona.Technical, persona.Empathetic} {
		p := g.Personas().Get(string(id))
		resp, err := g.Ask(ctx, Request{Question: "Posso tomar a dose com leite?", Persona: string(id)})
		require.NoError(t, err)
		assert.True(t, resp.Fallback)
		assert.False(t, resp.Cached)
		assert.NotEmpty(t, resp.Text)
		assert.Contains(t, p.Fallbacks, resp.Text)
	}

	// fallbacks are never cached
	model.err = nil
	model.text = "resposta real"
	resp, err := g.Ask(ctx, Request{Question: "Posso tomar a dose com leite?", Persona: "technical"})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, "resposta real", resp.Text)
}

func TestAskEmptyLLMTextFallsBack(t *testing.T) {
	model := &fakeLLM{text: "   "}
	g, _ := newTestGateway(t, model)

	resp, err := g.Ask(context.Background(), Request{Question: "Qual a dose de clofazimina?", Persona: "empathetic"})
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
	assert.Equal(t, persona.Empathetic, resp.Persona)
}

func TestAskMissingKeyFailsClosed(t *testing.T) {
	g, _ := newTestGateway(t, llm.NewChain(nil))

	resp, err := g.Ask(context.Background(), Request{Question: "Qual a dose de dapsona?", Persona: "technical"})
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
}

func TestAskTimeoutFallsBack(t *testing.T) {
	model := &fakeLLM{text: "tarde demais", release: make(chan struct{})}
	g, _ := newTestGateway(t, model, WithTimeout(20*time.Millisecond))

	resp, err := g.Ask(context.Background(), Request{Question: "Qual a dose de dapsona?", Persona: "technical"})
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
}

func TestAskValidationSkipsLimiterAndCache(t *testing.T) {
	lim := &countingLimiter{}
	c := &countingCache{Cache: cache.NewMemory(cache.DefaultTTL, 0)}
	model := &fakeLLM{text: "ok"}
	g := New(Deps{Limiter: lim, Cache: c, LLM: model})

	for _, q := range []string{"", "   ", "abcd", " ab  ", strings.Repeat("a", 1001)} {
		_, err := g.Ask(context.Background(), Request{Question: q})
		require.Error(t, err, "question %q", q)
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Zero(t, lim.calls.Load())
	assert.Zero(t, c.gets.Load())
	assert.Zero(t, model.calls.Load())

	// bounds are inclusive and counted in characters
	_, err := g.Ask(context.Background(), Request{Question: "dosé"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = g.Ask(context.Background(), Request{Question: "ações"})
	assert.NoError(t, err)
	_, err = g.Ask(context.Background(), Request{Question: strings.Repeat("ã", 1000)})
	assert.NoError(t, err)
}

func TestAskRateLimited(t *testing.T) {
	model := &fakeLLM{text: "ok"}
	g, _ := newTestGateway(t, model)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := g.Ask(ctx, Request{Question: "Qual a dose de dapsona?", ClientID: "10.0.0.1"})
		require.NoError(t, err)
	}

	_, err := g.Ask(ctx, Request{Question: "Qual a dose de dapsona?", ClientID: "10.0.0.1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ratelimit.ErrLimited)

	var le *ratelimit.LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ratelimit.Hourly, le.Result.Window)
	assert.Contains(t, le.Error(), "hora")

	// other clients are independent
	_, err = g.Ask(ctx, Request{Question: "Qual a dose de dapsona?", ClientID: "10.0.0.2"})
	assert.NoError(t, err)
}

func TestAskRateLimitedSkipsCacheAndLLM(t *testing.T) {
	lim := &countingLimiter{deny: true}
	c := &countingCache{Cache: cache.NewMemory(cache.DefaultTTL, 0)}
	model := &fakeLLM{text: "ok"}
	g := New(Deps{Limiter: lim, Cache: c, LLM: model})

	_, err := g.Ask(context.Background(), Request{Question: "Qual a dose de dapsona?"})
	assert.ErrorIs(t, err, ratelimit.ErrLimited)
	assert.Zero(t, c.gets.Load())
	assert.Zero(t, model.calls.Load())
}

func TestAskLogsRejectedRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	lim := &countingLimiter{deny: true}
	g := New(Deps{Limiter: lim, LLM: &fakeLLM{text: "ok"}, Logger: zap.New(core)})
	ctx := context.Background()

	_, err := g.Ask(ctx, Request{Question: "Qual a dose de dapsona?", Persona: "empathetic", ClientID: "10.0.0.1"})
	require.ErrorIs(t, err, ratelimit.ErrLimited)
	_, err = g.Ask(ctx, Request{Question: "abc", ClientID: "10.0.0.1"})
	require.ErrorIs(t, err, ErrValidation)

	limited := logs.FilterMessage("chat rate limited").All()
	require.Len(t, limited, 1)
	fields := limited[0].ContextMap()
	assert.Equal(t, "empathetic", fields["persona"])
	assert.EqualValues(t, 23, fields["question_len"])
	assert.Len(t, fields["client_id"], 8)
	assert.NotContains(t, fields, "question")

	rejected := logs.FilterMessage("chat rejected").All()
	require.Len(t, rejected, 1)
	fields = rejected[0].ContextMap()
	assert.Equal(t, "technical", fields["persona"])
	assert.EqualValues(t, 3, fields["question_len"])
}

func TestAskCacheExpires(t *testing.T) {
	model := &fakeLLM{text: "ok"}
	g, clk := newTestGateway(t, model)
	ctx := context.Background()
	req := Request{Question: "Qual a dose de dapsona?", Persona: "technical"}

	_, err := g.Ask(ctx, req)
	require.NoError(t, err)

	clk.Advance(4 * time.Minute)
	resp, err := g.Ask(ctx, req)
	require.NoError(t, err)
	assert.True(t, resp.Cached)

	clk.Advance(time.Minute)
	resp, err = g.Ask(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, int32(2), model.calls.Load())
}

func TestAskCacheIsPerPersona(t *testing.T) {
	model := &fakeLLM{text: "ok"}
	g, _ := newTestGateway(t, model)
	ctx := context.Background()

	_, err := g.Ask(ctx, Request{Question: "Qual a dose de dapsona?", Persona: "technical"})
	require.NoError(t, err)
	resp, err := g.Ask(ctx, Request{Question: "Qual a dose de dapsona?", Persona: "empathetic"})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, int32(2), model.calls.Load())
}

func TestAskUnknownPersonaDefaultsToTechnical(t *testing.T) {
	g, _ := newTestGateway(t, &fakeLLM{text: "ok"})

	resp, err := g.Ask(context.Background(), Request{Question: "Qual a dose de dapsona?", Persona: "pirate"})
	require.NoError(t, err)
	assert.Equal(t, persona.Technical, resp.Persona)
}

func TestAskSharesConcurrentIdenticalMisses(t *testing.T) {
	model := &fakeLLM{text: "ok", release: make(chan struct{})}
	g, _ := newTestGateway(t, model)

	const n = 5
	var wg sync.WaitGroup
	results := make([]Response, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := g.Ask(context.Background(), Request{Question: "Qual a dose de dapsona?", ClientID: "c"})
			assert.NoError(t, err)
			results[i] = resp
		}(i)
	}

	require.Eventually(t, func() bool { return model.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(model.release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "ok", r.Text)
		assert.False(t, r.Fallback)
	}
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestAskRecordsUsageAndAudit(t *testing.T) {
	tr := &memTracker{}
	au := &memAuditor{}
	model := &fakeLLM{text: "resposta"}
	g := New(Deps{LLM: model, Tracker: tr, Auditor: au})

	question := "Qual a dose de dapsona?"
	_, err := g.Ask(context.Background(), Request{Question: question, Persona: "empathetic", ClientID: "10.0.0.9", RequestID: "req-1"})
	require.NoError(t, err)

	require.Len(t, tr.recs, 1)
	assert.Equal(t, "empathetic", tr.recs[0].Persona)
	assert.Equal(t, 15, tr.recs[0].TotalTokens)

	require.Len(t, au.entries, 1)
	e := au.entries[0]
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, len([]rune(question)), e.QuestionLen)
	assert.Equal(t, len([]rune("resposta")), e.ResponseLen)
	assert.NotEqual(t, "10.0.0.9", e.ClientHash)
	assert.Len(t, e.ClientPrefix, 8)
}
