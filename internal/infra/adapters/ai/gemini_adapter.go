package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"insight-harvest/internal/domain/ports/adapter"
)

var _ adapter.InferenceProvider = (*GeminiAdapter)(nil)

// GeminiAdapter is the second hosted provider, using the official SDK.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

func NewGeminiAdapter(ctx context.Context, apiKey, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key empty")
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, model: defaultModel}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) Generate(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = g.model
	}
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", normalizeErr(g.Name(), err)
	}
	text := resp.Text()
	if text == "" {
		return "", backendErr(g.Name(), "no candidate content")
	}
	return text, nil
}

func (g *GeminiAdapter) Ping(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return normalizeErr(g.Name(), err)
	}
	return nil
}
