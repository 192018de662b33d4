package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"insight-harvest/internal/domain/ports/adapter"
	"insight-harvest/internal/infra/metrics"
)

var _ adapter.Invoker = (*Invoker)(nil)

// Invoker is the invocation layer: it assembles the prompt, enforces the
// per-task timeout, records call metrics and optionally parses structured
// output. Provider selection happened at wiring time.
type Invoker struct {
	provider adapter.InferenceProvider
	log      *zerolog.Logger
}

func NewInvoker(provider adapter.InferenceProvider, logger *zerolog.Logger) *Invoker {
	compLog := logger.With().Str("component", "Invoker").Logger()
	return &Invoker{provider: provider, log: &compLog}
}

func (v *Invoker) ProviderName() string { return v.provider.Name() }

func (v *Invoker) Ping(ctx context.Context) error { return v.provider.Ping(ctx) }

// BuildPrompt combines source and query under the fixed analysis template.
// Both inputs are passed through whole; truncation is the validator's job,
// not the prompt's.
func BuildPrompt(source, query string) string {
	return fmt.Sprintf("Analyze this data:\n%s\n\nBased on the query: %s", source, query)
}

func (v *Invoker) Invoke(ctx context.Context, req adapter.InvokeRequest) (adapter.InvokeResult, error) {
	prompt := BuildPrompt(req.Source, req.Query)

	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := v.provider.Generate(callCtx, req.Model, prompt)
	latency := time.Since(start)

	tokensIn := countTokens(req.Model, prompt)
	tokensOut := countTokens(req.Model, text)
	metrics.ObserveInference(v.provider.Name(), req.Model, tokensIn, tokensOut,
		int(latency/time.Millisecond), err == nil)

	if err != nil {
		return adapter.InvokeResult{}, err
	}

	v.log.Debug().
		Str("provider", v.provider.Name()).
		Str("model", req.Model).
		Dur("latency", latency).
		Int("tokens_in", tokensIn).
		Int("tokens_out", tokensOut).
		Msg("inference call finished")

	if req.Structured {
		if raw, ok := parseStructured(text); ok {
			return adapter.InvokeResult{Structured: raw}, nil
		}
		// Parse failure is not a task failure: complete with raw text.
		v.log.Warn().Str("provider", v.provider.Name()).Msg("structured output requested but reply did not parse; returning raw text")
	}
	return adapter.InvokeResult{Text: text}, nil
}

// parseStructured accepts a JSON object or array, tolerating a fenced
// ```json block around it, which chat models love to add.
func parseStructured(text string) (json.RawMessage, bool) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	if !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}
