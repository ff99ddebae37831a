package llm

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// MockModel is a langchaingo model returning a fixed response, used for local
// runs and tests. A non-nil err is returned from every call instead.
type MockModel struct {
	response string
	err      error

	mu      sync.Mutex
	prompts []string
}

func NewMockModel(response string, err error) *MockModel {
	return &MockModel{response: response, err: err}
}

// GenerateContent implements llms.Model
func (m *MockModel) GenerateContent(
	_ context.Context,
	messages []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	var prompt string
	for _, message := range messages {
		if message.Role != llms.ChatMessageTypeHuman {
			continue
		}
		for _, part := range message.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt += text.Text
			}
		}
	}
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.response, StopReason: "stop"}},
	}, nil
}

// Call implements the legacy Call interface
func (m *MockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Prompts returns the human prompts received so far.
func (m *MockModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
