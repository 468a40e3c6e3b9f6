// Package llm talks to the external language model providers.
package llm

import (
	"context"
	"errors"

	"github.com/roteiro-ai/roteiro/pkg/models"
)

var (
	// ErrUnavailable means no usable provider is configured, e.g. a missing API key.
	ErrUnavailable = errors.New("llm unavailable")
	// ErrEmptyResponse means the provider answered without any text.
	ErrEmptyResponse = errors.New("llm returned an empty response")
)

// Request is one completion call: a system turn plus the persona prompt as the user turn.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Response is the generated text and its accounting.
type Response struct {
	Text     string
	Model    string
	Provider string
	Usage    models.Usage
}

// Client completes prompts. Any error is a failed call.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}
