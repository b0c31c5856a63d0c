package llm

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is close enough to the small instruct models' tokenizers
// for budget checks.
const DefaultEncoding = "cl100k_base"

// TokenCounter returns the token count of text.
type TokenCounter func(text string) int

// NewTokenCounter loads a tiktoken encoding, falling back to EstimateTokens
// when the encoding cannot be loaded (for example with no network access).
func NewTokenCounter(encoding string) TokenCounter {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return EstimateTokens
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}

// EstimateTokens approximates four characters per token.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}
