// Package classifier sorts queries into complexity tiers that drive
// model and budget selection upstream. Classification is pure keyword
// and token-count matching; no model call is involved.
package classifier

import (
	"fmt"
	"strings"
)

// Complexity tiers, cheapest first. Medium is the default tier; callers
// treat it as the low-cost route.
const (
	TierSimple  = "simple"
	TierMedium  = "medium"
	TierComplex = "complex"
)

// Config defines the classification rules. It is injected rather than
// compiled in so deployments can tune tiers without a rebuild.
type Config struct {
	SimpleKeywords  []string `mapstructure:"simple_keywords"`
	ComplexKeywords []string `mapstructure:"complex_keywords"`
	// LowTokenThreshold is the exclusive upper bound for a query to
	// still count as short.
	LowTokenThreshold int `mapstructure:"low_token_threshold"`
	// HighTokenThreshold is the exclusive lower bound for a query to
	// count as long.
	HighTokenThreshold int `mapstructure:"high_token_threshold"`
}

// DefaultConfig returns the built-in classification rules.
func DefaultConfig() Config {
	return Config{
		// Matching is plain substring, so single words that embed in
		// larger ones ("no" in "know", "ok" in "broken") are excluded.
		SimpleKeywords: []string{
			"what is", "define", "meaning of", "thanks", "thank you",
			"hello", "sounds good", "got it",
		},
		ComplexKeywords: []string{
			"architecture", "design", "migrate", "migration", "compare",
			"trade-off", "tradeoff", "optimize", "strategy", "disaster recovery",
			"multi-region", "step by step", "explain why",
		},
		LowTokenThreshold:  20,
		HighTokenThreshold: 100,
	}
}

// Validate reports whether the config is usable. Called at startup;
// a misconfigured classifier is a fatal error, not a runtime fallback.
func (c Config) Validate() error {
	if len(c.SimpleKeywords) == 0 {
		return fmt.Errorf("simple_keywords must not be empty")
	}
	if len(c.ComplexKeywords) == 0 {
		return fmt.Errorf("complex_keywords must not be empty")
	}
	if c.LowTokenThreshold <= 0 {
		return fmt.Errorf("low_token_threshold must be positive, got %d", c.LowTokenThreshold)
	}
	if c.HighTokenThreshold <= c.LowTokenThreshold {
		return fmt.Errorf("high_token_threshold (%d) must exceed low_token_threshold (%d)",
			c.HighTokenThreshold, c.LowTokenThreshold)
	}
	for i, kw := range c.SimpleKeywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("simple_keywords[%d] is blank", i)
		}
	}
	for i, kw := range c.ComplexKeywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("complex_keywords[%d] is blank", i)
		}
	}
	return nil
}

// Classifier assigns complexity tiers to queries.
type Classifier struct {
	cfg Config
}

// New validates the config and creates a Classifier.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("classifier config: %w", err)
	}
	return &Classifier{cfg: cfg}, nil
}

// Classify returns the tier for a query. tokenCount must come from the
// same tokenizer the rest of the pipeline uses. Rules apply in order: a
// simple keyword on a short query wins, then any complex keyword or a
// long query, then medium. The same inputs always yield the same tier.
func (c *Classifier) Classify(query string, tokenCount int) string {
	lowered := strings.ToLower(query)

	if tokenCount < c.cfg.LowTokenThreshold && containsAny(lowered, c.cfg.SimpleKeywords) {
		return TierSimple
	}
	if tokenCount > c.cfg.HighTokenThreshold || containsAny(lowered, c.cfg.ComplexKeywords) {
		return TierComplex
	}
	return TierMedium
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
