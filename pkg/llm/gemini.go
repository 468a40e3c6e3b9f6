package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/roteiro-ai/roteiro/pkg/config"
	"github.com/roteiro-ai/roteiro/pkg/models"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	client *genai.Client
	name   string
	model  string
}

// NewGemini builds a Gemini client. A missing API key fails closed with ErrUnavailable.
func NewGemini(ctx context.Context, p config.ProviderConfig) (*GeminiClient, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("provider %q: %w: missing api key", p.Name, ErrUnavailable)
	}

	cc := &genai.ClientConfig{
		APIKey:  p.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.URL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.URL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("provider %q: create genai client: %w", p.Name, err)
	}

	model := p.Model
	if model == "" {
		model = defaultGeminiModel
	}
	name := p.Name
	if name == "" {
		name = "gemini"
	}
	return &GeminiClient{client: client, name: name, model: model}, nil
}

// Name returns the provider name.
func (g *GeminiClient) Name() string { return g.name }

// Complete generates content for the prompt with the system instruction attached.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	temperature := req.Temperature
	gc := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), gc)
	if err != nil {
		return Response{}, fmt.Errorf("%s: generate content: %w", g.name, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Response{}, fmt.Errorf("%s: %w", g.name, ErrEmptyResponse)
	}

	out := Response{Text: text, Model: g.model, Provider: g.name}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = models.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}
