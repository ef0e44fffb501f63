package keyword

import (
	"context"
)

// SearchOptions optional parameters for conversation search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution from matches in the title field.
	// Values > 1 make title matches rank higher (e.g. 3.0). Use 1.0 for no boost.
	TitleBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// ConversationDoc is the indexed form of one conversation.
type ConversationDoc struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Date  string `json:"date"`
}

// ConversationIndex defines full-text operations over conversation bodies.
type ConversationIndex interface {
	Index(ctx context.Context, id string, doc *ConversationDoc) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error)
	Delete(ctx context.Context, id string) error
	// DocCount returns the total number of documents in the index.
	DocCount() (uint64, error)
	Close() error
}

// Hit is a single conversation search hit.
type Hit struct {
	ID    string
	Score float64
}
