package llm

import (
	"context"
	"fmt"

	"github.com/compozy/plansync/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// NewModel creates a langchaingo model for the configured provider
func NewModel(ctx context.Context, cfg *config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return createOpenAILLM(cfg)
	case ProviderAnthropic:
		return createAnthropicLLM(cfg)
	case ProviderGoogle:
		return createGoogleLLM(ctx, cfg)
	case ProviderOllama:
		return createOllamaLLM(cfg)
	case ProviderMock:
		return NewMockModel(cfg.MockResponse, nil), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// NewGenerator wires the configured model behind the retrying generator.
func NewGenerator(ctx context.Context, cfg *config.LLMConfig) (Generator, error) {
	model, err := NewModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}
	var base Generator = NewLangChainGenerator(model, cfg.Provider, CallOptions{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		JSONMode:    cfg.Provider == ProviderOpenAI || cfg.Provider == ProviderOllama,
	})
	limits := LimitOptions{
		Concurrency:       cfg.MaxConcurrency,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}
	if limits.enabled() {
		base = NewRateLimitedGenerator(base, limits)
	}
	return NewRetryingGenerator(base, RetryOptions{
		Attempts: cfg.RetryAttempts,
		Timeout:  cfg.Timeout,
	}), nil
}

func createOpenAILLM(cfg *config.LLMConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
	}
	if key := cfg.APIKey.Value(); key != "" {
		opts = append(opts, openai.WithToken(key))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func createAnthropicLLM(cfg *config.LLMConfig) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithModel(cfg.Model),
	}
	if key := cfg.APIKey.Value(); key != "" {
		opts = append(opts, anthropic.WithToken(key))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return anthropic.New(opts...)
}

func createGoogleLLM(ctx context.Context, cfg *config.LLMConfig) (llms.Model, error) {
	opts := []googleai.Option{
		googleai.WithDefaultModel(cfg.Model),
	}
	if key := cfg.APIKey.Value(); key != "" {
		opts = append(opts, googleai.WithAPIKey(key))
	}
	if cfg.BaseURL != "" {
		return nil, fmt.Errorf("googleai does not support custom API URL")
	}
	return googleai.New(ctx, opts...)
}

func createOllamaLLM(cfg *config.LLMConfig) (llms.Model, error) {
	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithFormat("json"),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	return ollama.New(opts...)
}
