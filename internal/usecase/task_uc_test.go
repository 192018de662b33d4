package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insight-harvest/internal/domain"
	"insight-harvest/internal/domain/model"
	"insight-harvest/internal/domain/ports/adapter"
	"insight-harvest/internal/infra/memstore"
	"insight-harvest/internal/infra/store"
)

// ---- Fakes ----

type fakeInvoker struct {
	invoke func(ctx context.Context, req adapter.InvokeRequest) (adapter.InvokeResult, error)
	ping   func(ctx context.Context) error
}

func (f *fakeInvoker) Invoke(ctx context.Context, req adapter.InvokeRequest) (adapter.InvokeResult, error) {
	return f.invoke(ctx, req)
}

func (f *fakeInvoker) Ping(ctx context.Context) error {
	if f.ping != nil {
		return f.ping(ctx)
	}
	return nil
}

func (f *fakeInvoker) ProviderName() string { return "fake" }

// syncScheduler runs submitted work inline so tests observe terminal states
// without sleeping.
type syncScheduler struct{}

func (syncScheduler) Submit(task func(ctx context.Context) error) error {
	_ = task(context.Background())
	return nil
}

// rejectScheduler refuses everything, like a saturated pool.
type rejectScheduler struct{}

func (rejectScheduler) Submit(func(ctx context.Context) error) error {
	return errors.New("worker queue full")
}

// holdScheduler captures submitted work for manual execution.
type holdScheduler struct {
	mu    sync.Mutex
	tasks []func(ctx context.Context) error
}

func (h *holdScheduler) Submit(task func(ctx context.Context) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append(h.tasks, task)
	return nil
}

type fakeNotifier struct {
	ch chan *model.Task
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ch: make(chan *model.Task, 8)}
}

func (f *fakeNotifier) Dispatch(_ context.Context, t *model.Task) { f.ch <- t }

func testOptions() Options {
	return Options{
		Limits:         model.DefaultLimits(),
		MaxBatch:       10,
		DefaultList:    20,
		MaxList:        100,
		DefaultModel:   "llama3.2:1b",
		DefaultTimeout: 60 * time.Second,
		MinTimeout:     10 * time.Second,
		MaxTimeout:     300 * time.Second,
		RecoveryGrace:  10 * time.Minute,
	}
}

func newTestUC(t *testing.T, invoker adapter.Invoker, sched Scheduler) (*taskUC, *store.TaskRepo, *fakeNotifier) {
	t.Helper()
	repo := store.NewTaskRepo(memstore.NewBackend(), time.Hour)
	notifier := newFakeNotifier()
	logger := zerolog.Nop()
	uc := NewTaskUseCase(repo, invoker, sched, notifier, testOptions(), &logger)
	return uc, repo, notifier
}

// ---- Create & execution ----

func TestCreateRunsToCompletion(t *testing.T) {
	ctx := context.Background()
	invoker := &fakeInvoker{
		invoke: func(_ context.Context, req adapter.InvokeRequest) (adapter.InvokeResult, error) {
			assert.Equal(t, "Q4 Revenue: $10M, Q3 Revenue: $8M", req.Source)
			assert.Equal(t, "What is the revenue trend?", req.Query)
			return adapter.InvokeResult{Text: "growth detected"}, nil
		},
	}
	uc, _, _ := newTestUC(t, invoker, syncScheduler{})

	created, err := uc.Create(ctx, model.CreateRequest{
		Source: "Q4 Revenue: $10M, Q3 Revenue: $8M",
		Query:  "What is the revenue trend?",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	// The handle returned to the caller reflects the pending state at
	// submission time.
	assert.Equal(t, model.TaskStatusPending, created.Status)

	got, err := uc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	assert.Equal(t, "growth detected", got.Result)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.CompletedAt)
	assert.GreaterOrEqual(t, got.ProcessingDurationMs, int64(0))
}

func TestCreateTimeoutFailsTask(t *testing.T) {
	ctx := context.Background()
	invoker := &fakeInvoker{
		invoke: func(context.Context, adapter.InvokeRequest) (adapter.InvokeResult, error) {
			return adapter.InvokeResult{}, fmt.Errorf("fake: %w", domain.ErrInferenceTimeout)
		},
	}
	uc, _, _ := newTestUC(t, invoker, syncScheduler{})

	created, err := uc.Create(ctx, model.CreateRequest{Source: "data", Query: "q", TimeoutSecs: 15})
	require.NoError(t, err)

	got, err := uc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Contains(t, got.Error, "timed out")
	assert.Contains(t, got.Error, "15s")
	assert.Empty(t, got.Result)
}

func TestCreateRejectsInvalidRequest(t *testing.T) {
	uc, repo, _ := newTestUC(t, &fakeInvoker{}, syncScheduler{})

	_, err := uc.Create(context.Background(), model.CreateRequest{Source: "", Query: "q"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	// Nothing was persisted.
	tasks, err := repo.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestCreateUsesDefaultModel(t *testing.T) {
	var seenModel string
	invoker := &fakeInvoker{
		invoke: func(_ context.Context, req adapter.InvokeRequest) (adapter.InvokeResult, error) {
			seenModel = req.Model
			return adapter.InvokeResult{Text: "ok"}, nil
		},
	}
	uc, _, _ := newTestUC(t, invoker, syncScheduler{})

	_, err := uc.Create(context.Background(), model.CreateRequest{Source: "d", Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "llama3.2:1b", seenModel)
}

func TestCreateStructuredResult(t *testing.T) {
	invoker := &fakeInvoker{
		invoke: func(_ context.Context, req adapter.InvokeRequest) (adapter.InvokeResult, error) {
			assert.True(t, req.Structured)
			return adapter.InvokeResult{Structured: json.RawMessage(`{"trend":"up"}`)}, nil
		},
	}
	uc, _, _ := newTestUC(t, invoker, syncScheduler{})

	created, err := uc.Create(context.Background(), model.CreateRequest{
		Source: "d", Query: "q", OutputFormat: "json",
	})
	require.NoError(t, err)

	got, err := uc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	assert.JSONEq(t, `{"trend":"up"}`, string(got.ResultStructured))
	assert.Empty(t, got.Result)
}

func TestCompletedTaskNotifiesCallback(t *testing.T) {
	invoker := &fakeInvoker{
		invoke: func(context.Context, adapter.InvokeRequest) (adapter.InvokeResult, error) {
			return adapter.InvokeResult{Text: "done"}, nil
		},
	}
	uc, _, notifier := newTestUC(t, invoker, syncScheduler{})

	created, err := uc.Create(context.Background(), model.CreateRequest{
		Source: "d", Query: "q", CallbackURL: "https://example.com/hook",
	})
	require.NoError(t, err)

	select {
	case snap := <-notifier.ch:
		assert.Equal(t, created.ID, snap.ID)
		assert.Equal(t, model.TaskStatusCompleted, snap.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("callback was never dispatched")
	}
}

func TestCreateFailsTaskWhenSchedulingRejected(t *testing.T) {
	ctx := context.Background()
	uc, _, notifier := newTestUC(t, &fakeInvoker{}, rejectScheduler{})

	created, err := uc.Create(ctx, model.CreateRequest{
		Source: "d", Query: "q", CallbackURL: "https://example.com/hook",
	})
	require.NoError(t, err)

	// The caller sees a terminal record immediately, never a task that no
	// worker will pick up.
	assert.Equal(t, model.TaskStatusFailed, created.Status)
	assert.Contains(t, created.Error, "schedule")

	got, err := uc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Contains(t, got.Error, "queue full")
	assert.Empty(t, got.Result)

	// Terminal via scheduling failure still notifies the callback.
	select {
	case snap := <-notifier.ch:
		assert.Equal(t, created.ID, snap.ID)
		assert.Equal(t, model.TaskStatusFailed, snap.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("callback was never dispatched")
	}
}

// ---- Batch ----

func TestCreateBatchPartialFailure(t *testing.T) {
	invoker := &fakeInvoker{
		invoke: func(context.Context, adapter.InvokeRequest) (adapter.InvokeResult, error) {
			return adapter.InvokeResult{Text: "ok"}, nil
		},
	}
	uc, _, _ := newTestUC(t, invoker, syncScheduler{})

	res, err := uc.CreateBatch(context.Background(), []model.CreateRequest{
		{Source: "a", Query: "qa"},
		{Source: "b", Query: ""},
		{Source: "c", Query: "qc"},
	})
	require.NoError(t, err)
	assert.Len(t, res.IDs, 2)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Contains(t, res.Failures[0].Error, "query")
}

func TestCreateBatchRejectsEmptyAndOversized(t *testing.T) {
	uc, _, _ := newTestUC(t, &fakeInvoker{}, syncScheduler{})

	_, err := uc.CreateBatch(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	big := make([]model.CreateRequest, 11)
	for i := range big {
		big[i] = model.CreateRequest{Source: "d", Query: "q"}
	}
	_, err = uc.CreateBatch(context.Background(), big)
	require.Error(t, err)
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "requests", verr.Field)
}

// ---- Single-flight & status transitions ----

func TestConcurrentTriggersRunOnce(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	var callsMu sync.Mutex

	invoker := &fakeInvoker{
		invoke: func(ctx context.Context, _ adapter.InvokeRequest) (adapter.InvokeResult, error) {
			callsMu.Lock()
			calls++
			callsMu.Unlock()
			close(started)
			<-release
			return adapter.InvokeResult{Text: "ok"}, nil
		},
	}
	sched := &holdScheduler{}
	uc, _, _ := newTestUC(t, invoker, sched)

	created, err := uc.Create(context.Background(), model.CreateRequest{Source: "d", Query: "q"})
	require.NoError(t, err)
	require.Len(t, sched.tasks, 1)

	run := sched.tasks[0]
	firstDone := make(chan error, 1)
	go func() { firstDone <- run(context.Background()) }()
	<-started

	// Second trigger while the first holds the task: swallowed, not an error.
	assert.NoError(t, run(context.Background()))

	close(release)
	require.NoError(t, <-firstDone)

	got, err := uc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	callsMu.Lock()
	assert.Equal(t, int32(1), calls)
	callsMu.Unlock()
}

func TestTriggerOnTerminalTaskIsNoOp(t *testing.T) {
	var calls int
	invoker := &fakeInvoker{
		invoke: func(context.Context, adapter.InvokeRequest) (adapter.InvokeResult, error) {
			calls++
			return adapter.InvokeResult{Text: "first"}, nil
		},
	}
	sched := &holdScheduler{}
	uc, _, _ := newTestUC(t, invoker, sched)

	created, err := uc.Create(context.Background(), model.CreateRequest{Source: "d", Query: "q"})
	require.NoError(t, err)
	require.Len(t, sched.tasks, 1)

	require.NoError(t, sched.tasks[0](context.Background()))
	// A replayed trigger must not touch the terminal record.
	require.NoError(t, sched.tasks[0](context.Background()))

	got, err := uc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	assert.Equal(t, "first", got.Result)
	assert.Equal(t, 1, calls)
}

// ---- List ----

func TestListClampsLimit(t *testing.T) {
	invoker := &fakeInvoker{
		invoke: func(context.Context, adapter.InvokeRequest) (adapter.InvokeResult, error) {
			return adapter.InvokeResult{Text: "ok"}, nil
		},
	}
	uc, repo, _ := newTestUC(t, invoker, &holdScheduler{})

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		task := model.NewTask(fmt.Sprintf("src %d", i), "q", "")
		task.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Save(context.Background(), task))
	}

	tasks, err := uc.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "src 4", tasks[0].Source)
	assert.Equal(t, "src 3", tasks[1].Source)

	// Zero falls back to the default; the store only holds 5.
	tasks, err = uc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, tasks, 5)

	// Over the cap still works, clamped server-side.
	tasks, err = uc.List(context.Background(), 10_000)
	require.NoError(t, err)
	assert.Len(t, tasks, 5)
}

// ---- Recovery ----

func TestRecoverStaleFailsOrphanedProcessing(t *testing.T) {
	ctx := context.Background()
	uc, repo, _ := newTestUC(t, &fakeInvoker{}, &holdScheduler{})

	stale := model.NewTask("old", "q", "")
	stale.Status = model.TaskStatusProcessing
	stale.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, stale))

	fresh := model.NewTask("fresh", "q", "")
	fresh.Status = model.TaskStatusProcessing
	require.NoError(t, repo.Save(ctx, fresh))

	done := model.NewTask("done", "q", "")
	done.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	done.Complete("ok", nil)
	require.NoError(t, repo.Save(ctx, done))

	n, err := uc.RecoverStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Find(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Contains(t, got.Error, "abandoned")

	got, err = repo.Find(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusProcessing, got.Status)

	got, err = repo.Find(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
}

// ---- Timeout clamping ----

func TestClampTimeout(t *testing.T) {
	uc, _, _ := newTestUC(t, &fakeInvoker{}, &holdScheduler{})

	assert.Equal(t, 60*time.Second, uc.clampTimeout(0))
	assert.Equal(t, 60*time.Second, uc.clampTimeout(-5))
	assert.Equal(t, 10*time.Second, uc.clampTimeout(1))
	assert.Equal(t, 42*time.Second, uc.clampTimeout(42))
	assert.Equal(t, 300*time.Second, uc.clampTimeout(9999))
}

// ---- Health ----

// durableBackend dresses the memory store up as a restart-surviving backend
// for health reporting tests.
type durableBackend struct {
	*memstore.Backend
}

func (durableBackend) Persistent() bool { return true }

func TestHealthReflectsInference(t *testing.T) {
	invoker := &fakeInvoker{
		ping: func(context.Context) error { return errors.New("connection refused") },
	}
	repo := store.NewTaskRepo(durableBackend{memstore.NewBackend()}, time.Hour)
	logger := zerolog.Nop()
	uc := NewTaskUseCase(repo, invoker, &holdScheduler{}, newFakeNotifier(), testOptions(), &logger)

	st := uc.Health(context.Background())
	assert.False(t, st.InferenceAvailable)
	assert.True(t, st.StoreAvailable)
	assert.False(t, st.Degraded)
}

func TestHealthMemoryOnlyHasNoDurableStore(t *testing.T) {
	// No durable backend configured: writes succeed but the store must not
	// advertise as available, since nothing survives a restart.
	uc, _, _ := newTestUC(t, &fakeInvoker{}, &holdScheduler{})

	st := uc.Health(context.Background())
	assert.True(t, st.InferenceAvailable)
	assert.False(t, st.StoreAvailable)
	assert.False(t, st.Degraded)
}
