package inference

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// EstimateTokens is the deterministic billing estimator: characters/4,
// rounded up. It is an approximation, not a real tokenizer; exact billing
// must not rely on it.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// PromptBudget trims prompts to fit a model's context window using a real
// tokenizer. Billing still uses EstimateTokens; the tokenizer is only for
// context-fit decisions.
type PromptBudget struct {
	tokenizer *tiktoken.Tiktoken
	reserve   int
}

// NewPromptBudget creates a budget using the tokenizer for the given model
// name, falling back to cl100k_base for unknown models. reserve is the
// token count held back for the model's response.
func NewPromptBudget(model string, reserve int) (*PromptBudget, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &PromptBudget{tokenizer: enc, reserve: reserve}, nil
}

// CountTokens returns the tokenizer's count for a string.
func (b *PromptBudget) CountTokens(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

// Fit truncates text so that systemTokens + text tokens + reserve stays
// within contextTokens. The returned string is a prefix of the input.
func (b *PromptBudget) Fit(text string, systemTokens, contextTokens int) string {
	budget := contextTokens - systemTokens - b.reserve
	if budget <= 0 {
		return ""
	}
	tokens := b.tokenizer.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return b.tokenizer.Decode(tokens[:budget])
}
