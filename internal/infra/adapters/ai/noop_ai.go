package ai

import (
	"context"
	"time"

	"insight-harvest/internal/domain/ports/adapter"
)

var _ adapter.InferenceProvider = (*NoopAdapter)(nil)

// NoopAdapter is the dev/test provider: it answers every prompt with a
// canned reply after a small delay instead of calling a real backend.
type NoopAdapter struct {
	Reply string
	Delay time.Duration
}

func NewNoopAdapter() *NoopAdapter {
	return &NoopAdapter{Reply: "noop inference response", Delay: 100 * time.Millisecond}
}

func (a *NoopAdapter) Name() string { return "noop" }

func (a *NoopAdapter) Generate(ctx context.Context, model, prompt string) (string, error) {
	select {
	case <-time.After(a.Delay):
	case <-ctx.Done():
		return "", normalizeErr(a.Name(), ctx.Err())
	}
	return a.Reply, nil
}

func (a *NoopAdapter) Ping(context.Context) error { return nil }
