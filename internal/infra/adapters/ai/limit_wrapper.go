package ai

import (
	"context"

	"insight-harvest/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.InferenceProvider = (*limitedProvider)(nil)

type limitedProvider struct {
	inner adapter.InferenceProvider
	sem   chan struct{}
}

// NewLimitedProvider bounds concurrent Generate calls with a semaphore.
// Ping is deliberately not limited so health checks stay responsive while
// inference is saturated.
func NewLimitedProvider(inner adapter.InferenceProvider, maxConcurrent int) adapter.InferenceProvider {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedProvider{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedProvider) Name() string { return l.inner.Name() }

func (l *limitedProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", normalizeErr(l.inner.Name(), ctx.Err())
	}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, model, prompt)
}

func (l *limitedProvider) Ping(ctx context.Context) error {
	return l.inner.Ping(ctx)
}
