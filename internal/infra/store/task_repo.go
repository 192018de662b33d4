package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"insight-harvest/internal/domain"
	"insight-harvest/internal/domain/model"
	"insight-harvest/internal/domain/ports/repository"
)

const (
	taskKeyPrefix = "task:"
	tasksIndexKey = "tasks_index"
)

var _ repository.TaskRepository = (*TaskRepo)(nil)

// TaskRepo persists task records through a Backend using the
// task:{id} / tasks_index key layout. Record TTL equals the retention
// window; the index is scored by creation time (unix milli) so ranged reads
// come back newest-first.
type TaskRepo struct {
	backend   repository.Backend
	retention time.Duration
}

func NewTaskRepo(backend repository.Backend, retention time.Duration) *TaskRepo {
	return &TaskRepo{backend: backend, retention: retention}
}

func taskKey(id string) string { return taskKeyPrefix + id }

func (r *TaskRepo) Save(ctx context.Context, t *model.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", t.ID, err)
	}
	if err := r.backend.Put(ctx, taskKey(t.ID), string(data), r.retention); err != nil {
		return err
	}
	score := float64(t.CreatedAt.UnixMilli())
	return r.backend.IndexAdd(ctx, tasksIndexKey, t.ID, score, r.retention)
}

func (r *TaskRepo) Find(ctx context.Context, id string) (*model.Task, error) {
	data, err := r.backend.Get(ctx, taskKey(id))
	if err != nil {
		return nil, err
	}
	var t model.Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
	}
	return &t, nil
}

func (r *TaskRepo) ListRecent(ctx context.Context, limit int) ([]*model.Task, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := r.backend.IndexRange(ctx, tasksIndexKey, 0, int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]*model.Task, 0, len(ids))
	for _, id := range ids {
		t, err := r.Find(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			// Record aged out ahead of its index entry; prune lazily.
			_ = r.backend.IndexRemove(ctx, tasksIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *TaskRepo) Ping(ctx context.Context) error { return r.backend.Ping(ctx) }

func (r *TaskRepo) Degraded() bool {
	if fb, ok := r.backend.(*FallbackBackend); ok {
		return fb.Degraded()
	}
	return false
}

func (r *TaskRepo) Persistent() bool { return r.backend.Persistent() }
