package quiz

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenBudget bounds the amount of topic content shipped to a model,
// counted in tokens rather than bytes so the prompt budget is
// predictable.
type TokenBudget struct {
	codec tokenizer.Codec
	limit int
}

// NewTokenBudget creates a budget of limit tokens using the cl100k
// encoding. A limit <= 0 disables truncation.
func NewTokenBudget(limit int) (*TokenBudget, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &TokenBudget{codec: codec, limit: limit}, nil
}

// Truncate cuts text to the budget on a token boundary. Text within
// the budget is returned unchanged.
func (b *TokenBudget) Truncate(text string) string {
	if b.limit <= 0 || text == "" {
		return text
	}

	ids, _, err := b.codec.Encode(text)
	if err != nil || len(ids) <= b.limit {
		return text
	}

	truncated, err := b.codec.Decode(ids[:b.limit])
	if err != nil {
		return text
	}
	return truncated
}

// Count returns the token count of text, or 0 on encoding failure.
func (b *TokenBudget) Count(text string) int {
	n, err := b.codec.Count(text)
	if err != nil {
		return 0
	}
	return n
}
