// Package memstore is the process-local store used when Redis is not
// configured or has become unreachable. Semantics mirror the Redis backend;
// records just do not survive restarts.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"insight-harvest/internal/domain"
	"insight-harvest/internal/domain/ports/repository"
)

var _ repository.Backend = (*Backend)(nil)

type entry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

type indexEntry struct {
	score     float64
	expiresAt time.Time // zero = no expiry
}

type Backend struct {
	mu      sync.Mutex
	items   map[string]entry
	indexes map[string]map[string]indexEntry
	now     func() time.Time
}

func NewBackend() *Backend {
	return &Backend{
		items:   make(map[string]entry),
		indexes: make(map[string]map[string]indexEntry),
		now:     time.Now,
	}
}

func (b *Backend) Put(_ context.Context, key, value string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = b.now().Add(ttl)
	}
	b.items[key] = e
	return nil
}

func (b *Backend) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.items[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	// Lazy expiry on read; the sweep catches the rest.
	if !e.expiresAt.IsZero() && !b.now().Before(e.expiresAt) {
		delete(b.items, key)
		return "", domain.ErrNotFound
	}
	return e.value, nil
}

func (b *Backend) IndexAdd(_ context.Context, indexKey, member string, score float64, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, ok := b.indexes[indexKey]
	if !ok {
		idx = make(map[string]indexEntry)
		b.indexes[indexKey] = idx
	}
	e := indexEntry{score: score}
	if ttl > 0 {
		e.expiresAt = b.now().Add(ttl)
	}
	idx[member] = e
	return nil
}

func (b *Backend) IndexRange(_ context.Context, indexKey string, offset, limit int64) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.indexes[indexKey]
	type scored struct {
		member string
		score  float64
	}
	now := b.now()
	all := make([]scored, 0, len(idx))
	for m, e := range idx {
		// Lazy expiry on read, same as Get.
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(idx, m)
			continue
		}
		all = append(all, scored{m, e.score})
	}
	// Descending score, member as deterministic tie-break.
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].member < all[j].member
	})
	if offset >= int64(len(all)) {
		return nil, nil
	}
	end := offset + limit
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	out := make([]string, 0, end-offset)
	for _, s := range all[offset:end] {
		out = append(out, s.member)
	}
	return out, nil
}

func (b *Backend) IndexRemove(_ context.Context, indexKey, member string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx, ok := b.indexes[indexKey]; ok {
		delete(idx, member)
	}
	return nil
}

func (b *Backend) Ping(context.Context) error { return nil }

func (b *Backend) Persistent() bool { return false }

// StartSweep evicts expired records and index members on the given interval
// until ctx ends.
func (b *Backend) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.sweep()
			}
		}
	}()
}

func (b *Backend) sweep() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for key, e := range b.items {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(b.items, key)
		}
	}
	for _, idx := range b.indexes {
		for member, e := range idx {
			if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
				delete(idx, member)
			}
		}
	}
}
