package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxRetries int
	RetryDelay time.Duration
}

// OpenAIProvider generates texts with the chat completions API.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewOpenAIProvider creates the provider.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger.Info("OpenAI provider initialized",
		zap.String("model", cfg.Model),
		zap.Int("max_retries", cfg.MaxRetries))

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Consult(ctx context.Context, question string) (string, error) {
	return p.complete(ctx, ConsultSystemPrompt, BuildConsultPrompt(question), 1000)
}

func (p *OpenAIProvider) GenerateMap(ctx context.Context, req MapRequest) (string, error) {
	return p.complete(ctx, MapSystemPrompt, BuildMapPrompt(req), 2000)
}

func (p *OpenAIProvider) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	}

	var text string
	attempt := 0
	op := func() error {
		attempt++
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("empty choices")
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return errors.New("empty completion")
		}
		return nil
	}

	err := backoff.RetryNotify(op, p.policy(ctx), func(err error, next time.Duration) {
		p.logger.Warn("Retrying OpenAI request",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", p.maxRetries),
			zap.Duration("next_in", next),
			zap.Error(err))
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed after %d attempts: %w", attempt, err)
	}
	return text, nil
}

// policy allows maxRetries attempts in total with exponential spacing.
func (p *OpenAIProvider) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retryDelay
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.maxRetries-1)), ctx)
}

// retryable reports whether err is worth another attempt: rate limits,
// server errors and transport failures are, client errors are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}
