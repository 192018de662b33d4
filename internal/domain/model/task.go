package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is one submitted (source, query) analysis request and its lifecycle
// record. The JSON contract is additive-only: fields are never renamed or
// removed so older readers keep working.
type Task struct {
	ID                   string          `json:"task_id"`
	Status               TaskStatus      `json:"status"`
	Source               string          `json:"source"`
	Query                string          `json:"query"`
	Model                string          `json:"model,omitempty"`
	Result               string          `json:"result,omitempty"`
	ResultStructured     json.RawMessage `json:"result_structured,omitempty"`
	Error                string          `json:"error,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
	ProcessingDurationMs int64           `json:"processing_duration_ms,omitempty"`
	CallbackURL          string          `json:"callback_url,omitempty"`
}

func NewTask(source, query, callbackURL string) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Status:      TaskStatusPending,
		Source:      source,
		Query:       query,
		CallbackURL: callbackURL,
		CreatedAt:   time.Now().UTC(),
	}
}

// Terminal reports whether the task reached Completed or Failed. Terminal
// tasks are immutable.
func (t *Task) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// Complete moves the task into its terminal success state. Exactly one of
// result / structured is stored: when structured is non-nil the raw text is
// dropped in its favor.
func (t *Task) Complete(result string, structured json.RawMessage) {
	now := time.Now().UTC()
	t.Status = TaskStatusCompleted
	if structured != nil {
		t.ResultStructured = structured
		t.Result = ""
	} else {
		t.Result = result
	}
	t.Error = ""
	t.CompletedAt = &now
	t.ProcessingDurationMs = now.Sub(t.CreatedAt).Milliseconds()
}

// Fail moves the task into its terminal failure state.
func (t *Task) Fail(reason string) {
	now := time.Now().UTC()
	t.Status = TaskStatusFailed
	t.Error = reason
	t.Result = ""
	t.ResultStructured = nil
	t.CompletedAt = &now
	t.ProcessingDurationMs = now.Sub(t.CreatedAt).Milliseconds()
}
