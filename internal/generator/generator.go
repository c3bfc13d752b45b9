// Package generator produces consultation answers and psychological map
// texts, either through OpenAI or through a local canned-response engine.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"psybot/internal/models"
)

// ErrAllProvidersFailed is returned by Chain when no provider produced text.
var ErrAllProvidersFailed = errors.New("all generation providers failed")

// MapRequest carries a completed questionnaire.
type MapRequest struct {
	Questions []string
	Answers   []string
	Variant   models.Variant
	Topic     string
}

// Generator is the text generation backend used by the conversation.
type Generator interface {
	Consult(ctx context.Context, question string) (string, error)
	GenerateMap(ctx context.Context, req MapRequest) (string, error)
}

// Provider is a named Generator that can take part in a Chain.
type Provider interface {
	Generator
	Name() string
}

// Chain tries providers in order and returns the first successful result.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

// NewChain builds a failover chain. At least one provider is required.
func NewChain(logger *zap.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	return &Chain{providers: providers, logger: logger}, nil
}

// Consult answers a free-form question with the first provider that succeeds.
func (c *Chain) Consult(ctx context.Context, question string) (string, error) {
	return c.run(ctx, "consult", func(p Provider) (string, error) {
		return p.Consult(ctx, question)
	})
}

// GenerateMap writes a psychological map with the first provider that succeeds.
func (c *Chain) GenerateMap(ctx context.Context, req MapRequest) (string, error) {
	return c.run(ctx, "map", func(p Provider) (string, error) {
		return p.GenerateMap(ctx, req)
	})
}

func (c *Chain) run(ctx context.Context, kind string, call func(Provider) (string, error)) (string, error) {
	var lastErr error
	for i, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := call(p)
		if err == nil && strings.TrimSpace(text) != "" {
			if i > 0 {
				c.logger.Info("Generation served by fallback provider",
					zap.String("kind", kind),
					zap.String("provider", p.Name()))
			}
			return text, nil
		}
		if err == nil {
			err = errors.New("empty response")
		}

		lastErr = err
		c.logger.Error("Provider failed",
			zap.String("kind", kind),
			zap.String("provider", p.Name()),
			zap.Int("provider_index", i),
			zap.Error(err))
	}
	return "", fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}

// Names lists the providers in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}
