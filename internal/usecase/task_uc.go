// File: internal/usecase/task_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"insight-harvest/internal/domain"
	"insight-harvest/internal/domain/model"
	"insight-harvest/internal/domain/ports/adapter"
	"insight-harvest/internal/domain/ports/repository"
	"insight-harvest/internal/infra/metrics"
)

// Scheduler runs a unit of work asynchronously. The worker pool satisfies it.
type Scheduler interface {
	Submit(task func(ctx context.Context) error) error
}

// Notifier delivers a terminal task snapshot to its callback URL.
type Notifier interface {
	Dispatch(ctx context.Context, t *model.Task)
}

type BatchFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type BatchResult struct {
	IDs      []string
	Failures []BatchFailure
}

type HealthStatus struct {
	InferenceAvailable bool
	StoreAvailable     bool
	Degraded           bool
}

type Options struct {
	Limits         model.Limits
	MaxBatch       int
	DefaultList    int
	MaxList        int
	DefaultModel   string
	DefaultTimeout time.Duration
	MinTimeout     time.Duration
	MaxTimeout     time.Duration
	RecoveryGrace  time.Duration
}

// Compile-time check
var _ TaskUseCase = (*taskUC)(nil)

type TaskUseCase interface {
	// Create validates the request, persists a pending task and schedules
	// its execution. It returns without waiting for inference.
	Create(ctx context.Context, req model.CreateRequest) (*model.Task, error)
	// CreateBatch applies Create to each request independently; one bad
	// request never blocks the others.
	CreateBatch(ctx context.Context, reqs []model.CreateRequest) (BatchResult, error)
	Get(ctx context.Context, id string) (*model.Task, error)
	List(ctx context.Context, limit int) ([]*model.Task, error)
	Health(ctx context.Context) HealthStatus
	// RecoverStale fails processing tasks older than the recovery grace,
	// picking up work orphaned by a previous crash. Run once at startup.
	RecoverStale(ctx context.Context) (int, error)
}

type taskUC struct {
	repo     repository.TaskRepository
	invoker  adapter.Invoker
	sched    Scheduler
	notifier Notifier
	opts     Options
	log      *zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewTaskUseCase(
	repo repository.TaskRepository,
	invoker adapter.Invoker,
	sched Scheduler,
	notifier Notifier,
	opts Options,
	logger *zerolog.Logger,
) *taskUC {
	compLog := logger.With().Str("component", "TaskUseCase").Logger()
	return &taskUC{
		repo:     repo,
		invoker:  invoker,
		sched:    sched,
		notifier: notifier,
		opts:     opts,
		log:      &compLog,
		inflight: make(map[string]struct{}),
	}
}

// execSpec carries the request-scoped execution parameters from Create to
// the scheduled run; they are not part of the persisted record until
// execution starts.
type execSpec struct {
	model      string
	timeout    time.Duration
	structured bool
}

func (u *taskUC) Create(ctx context.Context, req model.CreateRequest) (*model.Task, error) {
	if err := req.Validate(u.opts.Limits); err != nil {
		return nil, err
	}

	t := model.NewTask(req.Source, req.Query, req.CallbackURL)
	if err := u.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	metrics.IncTaskCreated()

	spec := execSpec{
		model:      req.Model,
		timeout:    u.clampTimeout(req.TimeoutSecs),
		structured: req.OutputFormat == "json",
	}
	if spec.model == "" {
		spec.model = u.opts.DefaultModel
	}

	id := t.ID
	if err := u.sched.Submit(func(ctx context.Context) error {
		runErr := u.run(ctx, id, spec)
		if errors.Is(runErr, domain.ErrAlreadyRunning) {
			// Duplicate trigger; the winning execution owns the task.
			u.log.Debug().Str("task_id", id).Msg("skipped duplicate execution trigger")
			return nil
		}
		return runErr
	}); err != nil {
		// Nothing will ever pick this task up, so a permanently-pending
		// record would mislead pollers. Fail it now.
		u.log.Error().Err(err).Str("task_id", id).Msg("could not schedule task execution")
		t.Fail(fmt.Sprintf("could not schedule execution: %v", err))
		if saveErr := u.repo.Save(ctx, t); saveErr != nil {
			return nil, saveErr
		}
		metrics.IncTaskProcessed(string(t.Status))
		if t.CallbackURL != "" {
			snapshot := *t
			go u.notifier.Dispatch(context.Background(), &snapshot)
		}
		return t, nil
	}

	u.log.Info().Str("task_id", id).Msg("task created")
	return t, nil
}

func (u *taskUC) CreateBatch(ctx context.Context, reqs []model.CreateRequest) (BatchResult, error) {
	if len(reqs) == 0 {
		return BatchResult{}, &model.ValidationError{Field: "requests", Reason: "must not be empty"}
	}
	if len(reqs) > u.opts.MaxBatch {
		return BatchResult{}, &model.ValidationError{
			Field:  "requests",
			Reason: fmt.Sprintf("exceeds maximum batch size of %d", u.opts.MaxBatch),
		}
	}

	var res BatchResult
	for i, req := range reqs {
		t, err := u.Create(ctx, req)
		if err != nil {
			res.Failures = append(res.Failures, BatchFailure{Index: i, Error: err.Error()})
			continue
		}
		res.IDs = append(res.IDs, t.ID)
	}
	return res, nil
}

func (u *taskUC) Get(ctx context.Context, id string) (*model.Task, error) {
	return u.repo.Find(ctx, id)
}

func (u *taskUC) List(ctx context.Context, limit int) ([]*model.Task, error) {
	if limit <= 0 {
		limit = u.opts.DefaultList
	}
	if limit > u.opts.MaxList {
		limit = u.opts.MaxList
	}
	return u.repo.ListRecent(ctx, limit)
}

func (u *taskUC) Health(ctx context.Context) HealthStatus {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	st := HealthStatus{Degraded: u.repo.Degraded()}
	st.InferenceAvailable = u.invoker.Ping(probeCtx) == nil
	// StoreAvailable means a live durable backend: memory-only mode and a
	// degraded fallback both report false even though writes still succeed.
	st.StoreAvailable = u.repo.Persistent() && u.repo.Ping(probeCtx) == nil && !st.Degraded
	return st
}

// run drives one task through Pending -> Processing -> terminal. The
// in-flight reservation and the Pending check happen under one guard so two
// racing triggers cannot both start execution.
func (u *taskUC) run(ctx context.Context, id string, spec execSpec) error {
	u.mu.Lock()
	if _, busy := u.inflight[id]; busy {
		u.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	u.inflight[id] = struct{}{}
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		delete(u.inflight, id)
		u.mu.Unlock()
	}()

	t, err := u.repo.Find(ctx, id)
	if err != nil {
		return fmt.Errorf("load task %s: %w", id, err)
	}
	switch t.Status {
	case model.TaskStatusPending:
		// proceed
	case model.TaskStatusProcessing:
		return domain.ErrAlreadyRunning
	default:
		// Terminal states are immutable; a duplicate trigger is a no-op.
		return nil
	}

	t.Status = model.TaskStatusProcessing
	t.Model = spec.model
	if err := u.repo.Save(ctx, t); err != nil {
		return fmt.Errorf("mark task %s processing: %w", id, err)
	}
	u.log.Info().Str("task_id", id).Str("model", spec.model).Msg("task processing")

	res, invErr := u.invoker.Invoke(ctx, adapter.InvokeRequest{
		Source:     t.Source,
		Query:      t.Query,
		Model:      spec.model,
		Timeout:    spec.timeout,
		Structured: spec.structured,
	})
	if invErr != nil {
		t.Fail(failureMessage(invErr, spec.timeout))
		u.log.Error().Err(invErr).Str("task_id", id).Msg("task failed")
	} else {
		t.Complete(res.Text, res.Structured)
	}

	// The original request context may be gone; the terminal write must
	// still land.
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := u.repo.Save(saveCtx, t); err != nil {
		return fmt.Errorf("save terminal state for task %s: %w", id, err)
	}
	metrics.IncTaskProcessed(string(t.Status))
	u.log.Info().
		Str("task_id", id).
		Str("status", string(t.Status)).
		Int64("duration_ms", t.ProcessingDurationMs).
		Msg("task finished")

	if t.CallbackURL != "" {
		snapshot := *t
		go u.notifier.Dispatch(context.Background(), &snapshot)
	}
	return nil
}

func (u *taskUC) RecoverStale(ctx context.Context) (int, error) {
	// Bounded scan over the newest records; anything older ages out via TTL.
	tasks, err := u.repo.ListRecent(ctx, u.opts.MaxList)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-u.opts.RecoveryGrace)
	recovered := 0
	for _, t := range tasks {
		if t.Status != model.TaskStatusProcessing || t.CreatedAt.After(cutoff) {
			continue
		}
		t.Fail("task abandoned mid-processing, likely by a process restart")
		if err := u.repo.Save(ctx, t); err != nil {
			u.log.Error().Err(err).Str("task_id", t.ID).Msg("could not fail stale task")
			continue
		}
		metrics.IncTaskProcessed(string(model.TaskStatusFailed))
		recovered++
	}
	if recovered > 0 {
		u.log.Warn().Int("count", recovered).Msg("failed stale processing tasks from a previous run")
	}
	return recovered, nil
}

func (u *taskUC) clampTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return u.opts.DefaultTimeout
	}
	d := time.Duration(seconds) * time.Second
	if d < u.opts.MinTimeout {
		return u.opts.MinTimeout
	}
	if d > u.opts.MaxTimeout {
		return u.opts.MaxTimeout
	}
	return d
}

// failureMessage keeps the recorded error human-readable and explicit about
// timeouts, which callers grep for.
func failureMessage(err error, timeout time.Duration) string {
	switch {
	case errors.Is(err, domain.ErrInferenceTimeout):
		return fmt.Sprintf("inference timed out after %s", timeout)
	case errors.Is(err, domain.ErrInferenceConnection):
		return fmt.Sprintf("inference backend unreachable: %v", err)
	default:
		return fmt.Sprintf("inference failed: %v", err)
	}
}
