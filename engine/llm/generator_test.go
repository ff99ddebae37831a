package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/compozy/plansync/engine/core"
	"github.com/compozy/plansync/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func fastRetry(attempts int) RetryOptions {
	return RetryOptions{Attempts: attempts, BackoffBase: time.Millisecond, BackoffMax: 2 * time.Millisecond}
}

func TestLangChainGenerator(t *testing.T) {
	t.Run("Should return the first choice and forward the prompt", func(t *testing.T) {
		model := NewMockModel(`{"goal":"x"}`, nil)
		g := NewLangChainGenerator(model, ProviderMock, CallOptions{JSONMode: true})
		out, err := g.Generate(t.Context(), "plan my week")
		require.NoError(t, err)
		assert.Equal(t, `{"goal":"x"}`, out)
		assert.Equal(t, []string{"plan my week"}, model.Prompts())
	})

	t.Run("Should classify provider failures", func(t *testing.T) {
		model := NewMockModel("", errors.New("API returned unexpected status code: 429"))
		g := NewLangChainGenerator(model, ProviderOpenAI, CallOptions{})
		_, err := g.Generate(t.Context(), "p")
		require.Error(t, err)
		assert.Equal(t, ErrCodeRateLimit, core.ErrorCode(err))
		assert.True(t, IsRetryable(err))
	})
}

func TestRetryingGenerator(t *testing.T) {
	t.Run("Should retry transient failures until success", func(t *testing.T) {
		next := &mockGenerator{}
		transient := core.NewError(errors.New("status code: 503"), ErrCodeUnavailable, nil)
		next.On("Generate", mock.Anything, "p").Return("", transient).Twice()
		next.On("Generate", mock.Anything, "p").Return("ok", nil).Once()
		out, err := NewRetryingGenerator(next, fastRetry(3)).Generate(t.Context(), "p")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		next.AssertNumberOfCalls(t, "Generate", 3)
	})

	t.Run("Should not retry permanent failures", func(t *testing.T) {
		next := &mockGenerator{}
		permanent := core.NewError(errors.New("status code: 401"), ErrCodeAuth, nil)
		next.On("Generate", mock.Anything, "p").Return("", permanent)
		_, err := NewRetryingGenerator(next, fastRetry(3)).Generate(t.Context(), "p")
		require.Error(t, err)
		assert.Equal(t, ErrCodeAuth, core.ErrorCode(err))
		next.AssertNumberOfCalls(t, "Generate", 1)
	})

	t.Run("Should give up after the configured attempts", func(t *testing.T) {
		next := &mockGenerator{}
		next.On("Generate", mock.Anything, "p").Return("", errors.New("connection reset by peer"))
		_, err := NewRetryingGenerator(next, fastRetry(2)).Generate(t.Context(), "p")
		require.Error(t, err)
		assert.Equal(t, ErrCodeGeneration, core.ErrorCode(err))
		next.AssertNumberOfCalls(t, "Generate", 2)
	})
}

func TestIsRetryable(t *testing.T) {
	t.Run("Should treat cancellation as final and deadlines as transient", func(t *testing.T) {
		assert.False(t, IsRetryable(nil))
		assert.False(t, IsRetryable(context.Canceled))
		assert.True(t, IsRetryable(context.DeadlineExceeded))
		assert.False(t, IsRetryable(errors.New("invalid prompt")))
	})
}

func TestNewGenerator(t *testing.T) {
	t.Run("Should build the mock provider from configuration", func(t *testing.T) {
		cfg := &config.LLMConfig{Provider: ProviderMock, MockResponse: "hello"}
		g, err := NewGenerator(t.Context(), cfg)
		require.NoError(t, err)
		out, err := g.Generate(t.Context(), "p")
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})

	t.Run("Should reject unknown providers", func(t *testing.T) {
		_, err := NewGenerator(t.Context(), &config.LLMConfig{Provider: "unknown"})
		assert.Error(t, err)
	})
}
