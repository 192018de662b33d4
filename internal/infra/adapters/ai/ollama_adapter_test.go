package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insight-harvest/internal/domain"
)

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/generate", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2:1b", req.Model)
		assert.Contains(t, req.Prompt, "Analyze this data:")
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(map[string]string{"response": "growth detected"})
	}))
	defer srv.Close()

	a, err := NewOllamaAdapter(srv.URL, "llama3.2:1b")
	require.NoError(t, err)

	got, err := a.Generate(context.Background(), "", BuildPrompt("data", "q"))
	require.NoError(t, err)
	assert.Equal(t, "growth detected", got)
}

func TestOllamaGenerateBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	a, err := NewOllamaAdapter(srv.URL, "llama3.2:1b")
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), "ghost-model", "prompt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInferenceBackend))
}

func TestOllamaGenerateConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close() // nothing is listening anymore

	a, err := NewOllamaAdapter(base, "llama3.2:1b")
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInferenceConnection))
}

func TestOllamaGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	a, err := NewOllamaAdapter(srv.URL, "llama3.2:1b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = a.Generate(ctx, "", "prompt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInferenceTimeout))
}

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := NewOllamaAdapter(srv.URL, "")
	require.NoError(t, err)
	assert.NoError(t, a.Ping(context.Background()))

	srv.Close()
	assert.Error(t, a.Ping(context.Background()))
}

func TestNewOllamaAdapterRejectsEmptyBase(t *testing.T) {
	_, err := NewOllamaAdapter("", "m")
	assert.Error(t, err)
}

func TestNormalizeErr(t *testing.T) {
	assert.NoError(t, normalizeErr("p", nil))

	err := normalizeErr("p", context.DeadlineExceeded)
	assert.True(t, errors.Is(err, domain.ErrInferenceTimeout))

	err = normalizeErr("p", errors.New("some backend quirk"))
	assert.True(t, errors.Is(err, domain.ErrInferenceBackend))

	err = backendErr("p", "http 500")
	assert.True(t, errors.Is(err, domain.ErrInferenceBackend))
	assert.Contains(t, err.Error(), "http 500")
}
