package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

const systemPrompt = "You turn task descriptions into schedules. Answer with JSON only."

// Generator is the single call the planner makes against a model: prompt in,
// raw text out. Callers must not assume the text is valid JSON.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CallOptions tune a single generation.
type CallOptions struct {
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// LangChainGenerator adapts a langchaingo model to Generator.
type LangChainGenerator struct {
	model    llms.Model
	provider string
	opts     CallOptions
}

func NewLangChainGenerator(model llms.Model, provider string, opts CallOptions) *LangChainGenerator {
	return &LangChainGenerator{model: model, provider: provider, opts: opts}
}

func (g *LangChainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	resp, err := g.model.GenerateContent(ctx, messages, g.buildCallOptions()...)
	if err != nil {
		return "", classify(g.provider, fmt.Errorf("langchain GenerateContent failed: %w", err))
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func (g *LangChainGenerator) buildCallOptions() []llms.CallOption {
	var options []llms.CallOption
	if g.opts.Temperature > 0 {
		options = append(options, llms.WithTemperature(g.opts.Temperature))
	}
	if g.opts.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(g.opts.MaxTokens))
	}
	if g.opts.JSONMode {
		options = append(options, llms.WithJSONMode())
	}
	return options
}
