package adapter

import (
	"context"
	"encoding/json"
	"time"
)

// InferenceProvider is the port for a single LLM backend. Providers must
// normalize their failures to the three domain inference errors
// (timeout / connection / backend).
type InferenceProvider interface {
	Name() string
	// Generate runs a single-turn completion and returns the raw text.
	Generate(ctx context.Context, model, prompt string) (string, error)
	// Ping reports live reachability of the backend.
	Ping(ctx context.Context) error
}

// InvokeRequest describes one inference run for a task.
type InvokeRequest struct {
	Source     string
	Query      string
	Model      string
	Timeout    time.Duration
	Structured bool
}

// InvokeResult carries the outcome. Structured is set only when structured
// output was requested and the reply parsed; otherwise Text holds the raw
// reply.
type InvokeResult struct {
	Text       string
	Structured json.RawMessage
}

// Invoker is the invocation layer consumed by the lifecycle manager: prompt
// assembly, timeout enforcement, error normalization and optional
// structured-output parsing live behind it.
type Invoker interface {
	Invoke(ctx context.Context, req InvokeRequest) (InvokeResult, error)
	Ping(ctx context.Context) error
	ProviderName() string
}
