package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"insight-harvest/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.InferenceProvider = (*OllamaAdapter)(nil)

// OllamaAdapter talks to a local Ollama server over its generate API.
// The call deadline comes from the caller's context; the client itself has
// no fixed timeout because per-task timeouts are configurable up to minutes.
type OllamaAdapter struct {
	base   string // e.g., http://localhost:11434
	model  string
	client *http.Client
}

func NewOllamaAdapter(base, defaultModel string) (*OllamaAdapter, error) {
	if base == "" {
		return nil, errors.New("ollama base url empty")
	}
	if defaultModel == "" {
		defaultModel = "llama3.2:1b"
	}
	return &OllamaAdapter{
		base:   strings.TrimRight(base, "/"),
		model:  defaultModel,
		client: &http.Client{},
	}, nil
}

func (o *OllamaAdapter) Name() string { return "ollama" }

func (o *OllamaAdapter) Generate(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = o.model
	}
	reqBody := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		Stream bool   `json:"stream"`
	}{Model: model, Prompt: prompt, Stream: false}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return "", normalizeErr(o.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", normalizeErr(o.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", backendErr(o.Name(), fmt.Sprintf("http %d", resp.StatusCode))
	}

	var payload struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", normalizeErr(o.Name(), err)
	}
	return payload.Response, nil
}

// Ping probes the tags endpoint, the cheapest liveness signal Ollama offers.
func (o *OllamaAdapter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.base+"/api/tags", nil)
	if err != nil {
		return normalizeErr(o.Name(), err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return normalizeErr(o.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return backendErr(o.Name(), fmt.Sprintf("http %d", resp.StatusCode))
	}
	return nil
}
