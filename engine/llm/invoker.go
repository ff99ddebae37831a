package llm

import (
	"context"
	"time"

	"github.com/compozy/plansync/engine/core"
	"github.com/compozy/plansync/pkg/logger"
	"github.com/sethvargo/go-retry"
)

const (
	defaultRetryAttempts = 3
	defaultBackoffBase   = 200 * time.Millisecond
	defaultBackoffMax    = 5 * time.Second
)

type RetryOptions struct {
	Attempts    int
	Timeout     time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Jitter      bool
}

// RetryingGenerator retries transient transport failures of the wrapped
// generator with exponential backoff.
type RetryingGenerator struct {
	next Generator
	opts RetryOptions
}

func NewRetryingGenerator(next Generator, opts RetryOptions) *RetryingGenerator {
	if opts.Attempts <= 0 || opts.Attempts > 10 {
		opts.Attempts = defaultRetryAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = defaultBackoffMax
	}
	return &RetryingGenerator{next: next, opts: opts}
}

func (g *RetryingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}
	exponential := retry.NewExponential(g.opts.BackoffBase)
	exponential = retry.WithMaxDuration(g.opts.BackoffMax, exponential)
	maxRetries := uint64(g.opts.Attempts - 1) // #nosec G115 -- attempts sanitized in constructor
	var backoff retry.Backoff
	if g.opts.Jitter {
		backoff = retry.WithMaxRetries(maxRetries, retry.WithJitter(50*time.Millisecond, exponential))
	} else {
		backoff = retry.WithMaxRetries(maxRetries, exponential)
	}

	log := logger.FromContext(ctx)
	attempt := 0
	var text string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var callErr error
		text, callErr = g.next.Generate(ctx, prompt)
		if callErr == nil {
			return nil
		}
		if IsRetryable(callErr) {
			log.Debug("Model call failed, retrying", "attempt", attempt, "error", callErr)
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	if err != nil {
		if core.ErrorCode(err) != "" {
			return "", err
		}
		return "", core.NewError(err, ErrCodeGeneration, map[string]any{"attempts": attempt})
	}
	return text, nil
}
