package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roteiro-ai/roteiro/pkg/config"
	"github.com/roteiro-ai/roteiro/pkg/logging"
)

// Chain tries its providers in order and returns the first answer.
type Chain struct {
	clients []Client
	logger  *zap.Logger
}

var _ Client = (*Chain)(nil)

// NewChain creates a Chain over clients.
func NewChain(logger *zap.Logger, clients ...Client) *Chain {
	return &Chain{clients: clients, logger: logging.OrNop(logger)}
}

// NewFromConfig builds the provider chain from configuration. Providers that
// cannot be constructed (missing key, bad type) are skipped with a warning; an
// empty chain answers every call with ErrUnavailable.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) *Chain {
	logger = logging.OrNop(logger)

	var clients []Client
	for _, p := range cfg.Providers {
		var (
			c   Client
			err error
		)
		switch p.Type {
		case "", "openai":
			c, err = NewOpenAI(p)
		case "gemini":
			c, err = NewGemini(ctx, p)
		default:
			err = fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type)
		}
		if err != nil {
			logger.Warn("skipping llm provider", zap.String("provider", p.Name), zap.Error(err))
			continue
		}
		clients = append(clients, c)
	}

	if len(clients) == 0 {
		logger.Warn("no llm provider available, every answer will be a fallback")
	}
	return NewChain(logger, clients...)
}

// Name returns "chain".
func (c *Chain) Name() string { return "chain" }

// Len returns the number of providers.
func (c *Chain) Len() int { return len(c.clients) }

// Complete returns the first successful provider response. When every provider
// fails the errors are joined.
func (c *Chain) Complete(ctx context.Context, req Request) (Response, error) {
	if len(c.clients) == 0 {
		return Response{}, ErrUnavailable
	}

	var errs []error
	for _, client := range c.clients {
		resp, err := client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		errs = append(errs, err)
		c.logger.Warn("llm provider failed, trying next", zap.String("provider", client.Name()), zap.Error(err))

		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}
	return Response{}, errors.Join(errs...)
}
