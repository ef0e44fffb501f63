// Package keyword provides string normalization, edit distance, tokenization,
// and the full-text conversation index.
package keyword

import (
	"regexp"
	"strings"
)

var (
	nonWordRe  = regexp.MustCompile(`[^\w\s]`)
	splitterRe = regexp.MustCompile(`[^\w]+`)
)

// NormalizeKey returns the deduplication key of a name: lowercase, trimmed,
// with every non-word, non-space character removed.
func NormalizeKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSpace(nonWordRe.ReplaceAllString(key, ""))
}

// IndexTokens splits text into lowercase tokens for the inverted search index.
// Tokens of two characters or fewer are dropped; duplicates are removed.
func IndexTokens(text string) []string {
	parts := splitterRe.Split(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(parts))
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if len([]rune(p)) <= 2 {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		tokens = append(tokens, p)
	}
	return tokens
}

// QueryTokens splits a query into lowercase whitespace-separated terms.
func QueryTokens(query string) []string {
	return strings.Fields(strings.ToLower(strings.TrimSpace(query)))
}

// Slug turns a normalized key into an identifier-safe fragment.
func Slug(key string) string {
	s := strings.Join(strings.Fields(key), "-")
	if r := []rune(s); len(r) > 40 {
		s = string(r[:40])
	}
	return s
}
