package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"insight-harvest/internal/domain"
	"insight-harvest/internal/domain/ports/repository"
	"insight-harvest/internal/infra/metrics"
)

var _ repository.Backend = (*FallbackBackend)(nil)

// FallbackBackend serves from the durable primary until the first
// BackendUnavailable failure, then pins itself to the in-memory fallback for
// the remainder of the process. The switch is one-way; a fresh process
// re-attempts the primary.
type FallbackBackend struct {
	primary  repository.Backend
	fallback repository.Backend
	degraded atomic.Bool
	logOnce  sync.Once
	log      *zerolog.Logger
}

func NewFallbackBackend(primary, fallback repository.Backend, logger *zerolog.Logger) *FallbackBackend {
	return &FallbackBackend{primary: primary, fallback: fallback, log: logger}
}

func (f *FallbackBackend) Degraded() bool { return f.degraded.Load() }

func (f *FallbackBackend) active() repository.Backend {
	if f.degraded.Load() {
		return f.fallback
	}
	return f.primary
}

func (f *FallbackBackend) degrade(err error) {
	f.degraded.Store(true)
	metrics.SetStoreDegraded(true)
	f.logOnce.Do(func() {
		f.log.Error().Err(err).Msg("durable store unreachable; falling back to in-memory store for the rest of this process")
	})
}

func (f *FallbackBackend) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	err := f.active().Put(ctx, key, value, ttl)
	if errors.Is(err, domain.ErrBackendUnavailable) && !f.degraded.Load() {
		f.degrade(err)
		return f.fallback.Put(ctx, key, value, ttl)
	}
	return err
}

func (f *FallbackBackend) Get(ctx context.Context, key string) (string, error) {
	v, err := f.active().Get(ctx, key)
	if errors.Is(err, domain.ErrBackendUnavailable) && !f.degraded.Load() {
		f.degrade(err)
		return f.fallback.Get(ctx, key)
	}
	return v, err
}

func (f *FallbackBackend) IndexAdd(ctx context.Context, indexKey, member string, score float64, ttl time.Duration) error {
	err := f.active().IndexAdd(ctx, indexKey, member, score, ttl)
	if errors.Is(err, domain.ErrBackendUnavailable) && !f.degraded.Load() {
		f.degrade(err)
		return f.fallback.IndexAdd(ctx, indexKey, member, score, ttl)
	}
	return err
}

func (f *FallbackBackend) IndexRange(ctx context.Context, indexKey string, offset, limit int64) ([]string, error) {
	out, err := f.active().IndexRange(ctx, indexKey, offset, limit)
	if errors.Is(err, domain.ErrBackendUnavailable) && !f.degraded.Load() {
		f.degrade(err)
		return f.fallback.IndexRange(ctx, indexKey, offset, limit)
	}
	return out, err
}

func (f *FallbackBackend) IndexRemove(ctx context.Context, indexKey, member string) error {
	err := f.active().IndexRemove(ctx, indexKey, member)
	if errors.Is(err, domain.ErrBackendUnavailable) && !f.degraded.Load() {
		f.degrade(err)
		return f.fallback.IndexRemove(ctx, indexKey, member)
	}
	return err
}

func (f *FallbackBackend) Ping(ctx context.Context) error {
	return f.active().Ping(ctx)
}

func (f *FallbackBackend) Persistent() bool {
	return f.active().Persistent()
}
