package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// LimitOptions bound the load a process puts on the model provider. Zero
// values disable the matching limit.
type LimitOptions struct {
	Concurrency       int
	RequestsPerMinute float64
	Burst             int
}

func (o LimitOptions) enabled() bool {
	return o.Concurrency > 0 || o.RequestsPerMinute > 0
}

// RateLimitedGenerator caps in-flight and per-minute model calls. Waiting
// callers give up when their context ends.
type RateLimitedGenerator struct {
	next    Generator
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

func NewRateLimitedGenerator(next Generator, opts LimitOptions) *RateLimitedGenerator {
	g := &RateLimitedGenerator{next: next}
	if opts.Concurrency > 0 {
		g.sem = semaphore.NewWeighted(int64(opts.Concurrency))
	}
	if opts.RequestsPerMinute > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		every := time.Duration(float64(time.Minute) / opts.RequestsPerMinute)
		g.limiter = rate.NewLimiter(rate.Every(every), burst)
	}
	return g
}

func (g *RateLimitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return "", fmt.Errorf("waiting for a model slot: %w", err)
		}
		defer g.sem.Release(1)
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for model rate limit: %w", err)
		}
	}
	return g.next.Generate(ctx, prompt)
}
