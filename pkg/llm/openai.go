package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/roteiro-ai/roteiro/pkg/config"
	"github.com/roteiro-ai/roteiro/pkg/models"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient calls any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client *openai.Client
	name   string
	model  string
}

// NewOpenAI builds a client from provider config. A missing API key fails
// closed with ErrUnavailable instead of sending unauthenticated requests.
func NewOpenAI(p config.ProviderConfig) (*OpenAIClient, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("provider %q: %w: missing api key", p.Name, ErrUnavailable)
	}

	cfg := openai.DefaultConfig(p.APIKey)
	if p.URL != "" {
		cfg.BaseURL = strings.TrimRight(p.URL, "/")
	}

	model := p.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	name := p.Name
	if name == "" {
		name = "openai"
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		name:   name,
		model:  model,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return c.name }

// Complete sends the system and user turns and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("%s: chat completion: %w", c.name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Response{}, fmt.Errorf("%s: %w", c.name, ErrEmptyResponse)
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return Response{
		Text:     resp.Choices[0].Message.Content,
		Model:    model,
		Provider: c.name,
		Usage: models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
