// Package tokenizer provides the deterministic token counter shared by
// every budget decision in atlas.
//
// The chunker, the context assembler, and the complexity classifier must
// all measure text with the same Counter instance; mixing encodings across
// components skews every token budget in the pipeline.
package tokenizer

import (
	"fmt"
	"unicode/utf8"
)

// DefaultRunesPerToken approximates the density of common embedding-model
// encodings for English prose (~4 characters per token).
const DefaultRunesPerToken = 4

// Config selects the encoding density. Every component that measures
// tokens must be built from the same Config.
type Config struct {
	RunesPerToken int `mapstructure:"runes_per_token"`
}

// Counter converts text to a deterministic token count.
// The zero value is not usable; construct with New.
//
// Counter is safe for concurrent use.
type Counter struct {
	runesPerToken int
}

// New creates a Counter with the given encoding density.
// runesPerToken <= 0 selects DefaultRunesPerToken.
func New(runesPerToken int) *Counter {
	if runesPerToken <= 0 {
		runesPerToken = DefaultRunesPerToken
	}
	return &Counter{runesPerToken: runesPerToken}
}

// Count returns the token count for text. Identical input always yields
// an identical count. Empty text counts as zero.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	// Round up so short non-empty text still costs at least one token.
	return (runes + c.runesPerToken - 1) / c.runesPerToken
}

// Tail returns the literal suffix of text worth approximately n tokens.
// Used by the chunker to seed overlap excerpts when the last sentence is
// too large for the overlap budget.
func (c *Counter) Tail(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	keep := n * c.runesPerToken
	runes := []rune(text)
	if len(runes) <= keep {
		return text
	}
	return string(runes[len(runes)-keep:])
}

// String implements fmt.Stringer for debug logging.
func (c *Counter) String() string {
	return fmt.Sprintf("tokenizer.Counter(runesPerToken=%d)", c.runesPerToken)
}
