// Package llm defines the completion boundary: everything above it builds
// prompts, everything below it talks wire protocols.
package llm

import "context"

// Completer is the sole LLM boundary. Implementations handle
// protocol-specific details such as request formatting, authentication,
// and response parsing.
type Completer interface {
	// Complete sends one system+user prompt pair to the named model and
	// returns the model text.
	Complete(ctx context.Context, model, systemPrompt, userPrompt string, cfg Sampling) (string, error)
}

// Sampling holds per-request decoding parameters.
type Sampling struct {
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TopP        float32 `json:"top_p"`
}

// Config holds common configuration for completion backends.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}
