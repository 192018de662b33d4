package ai

import (
	"github.com/pkoukk/tiktoken-go"
)

// countTokens is best-effort prompt/reply accounting for the token metrics.
// Models tiktoken doesn't know (ollama-hosted ones, gemini) fall back to the
// cl100k base encoding, which is close enough for observability.
func countTokens(model, text string) int {
	if text == "" {
		return 0
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0
		}
	}
	return len(enc.Encode(text, nil, nil))
}
