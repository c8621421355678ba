// Package cache stores generated responses keyed by a digest of the
// normalized query, so superficially different phrasings of the same
// question hit the same entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DefaultGreetings returns the greeting filler stripped from queries
// before hashing. Longer phrases come first so "thank you" is removed
// before "thanks". Used when Config.Greetings is empty.
func DefaultGreetings() []string {
	return []string{
		"good morning",
		"good afternoon",
		"good evening",
		"thank you",
		"bonjour",
		"thanks",
		"hello",
		"salut",
		"مرحبا",
		"hey",
		"hi",
		"please",
	}
}

// Normalize lowercases the query, removes the given greeting fillers,
// and collapses runs of whitespace to single spaces. Removal is plain
// substring deletion, so filler embedded in larger words is also
// affected; the digest only has to be stable, not linguistically
// precise.
func Normalize(query string, greetings []string) string {
	normalized := strings.ToLower(query)
	for _, g := range greetings {
		normalized = strings.ReplaceAll(normalized, g, "")
	}
	return strings.Join(strings.Fields(normalized), " ")
}

// Key returns the cache key for a query: the hex SHA-256 digest of its
// normalized form.
func Key(query string, greetings []string) string {
	sum := sha256.Sum256([]byte(Normalize(query, greetings)))
	return hex.EncodeToString(sum[:])
}
