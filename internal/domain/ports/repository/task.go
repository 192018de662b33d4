package repository

import (
	"context"
	"time"

	"insight-harvest/internal/domain/model"
)

// Backend is the uniform key/value + ordered-index contract both store
// implementations satisfy. Callers must behave identically on either; the
// only observable difference is restart-durability.
type Backend interface {
	// Put stores value under key with the given TTL (0 = no expiry).
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value or domain.ErrNotFound when absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// IndexAdd inserts member into the ordered index under indexKey. The TTL
	// matches the backing record's so index entries age out with it; backends
	// without per-member expiry may ignore it and prune lazily.
	IndexAdd(ctx context.Context, indexKey, member string, score float64, ttl time.Duration) error
	// IndexRange returns members ordered by descending score.
	IndexRange(ctx context.Context, indexKey string, offset, limit int64) ([]string, error)
	IndexRemove(ctx context.Context, indexKey, member string) error

	Ping(ctx context.Context) error
	// Persistent reports whether records survive a process restart.
	Persistent() bool
}

// TaskRepository persists task records on top of a Backend.
type TaskRepository interface {
	Save(ctx context.Context, t *model.Task) error
	Find(ctx context.Context, id string) (*model.Task, error)
	// ListRecent returns up to limit tasks in descending created_at order.
	ListRecent(ctx context.Context, limit int) ([]*model.Task, error)

	Ping(ctx context.Context) error
	// Degraded reports whether the repository fell back to the in-memory
	// store after the durable backend became unreachable.
	Degraded() bool
	Persistent() bool
}
