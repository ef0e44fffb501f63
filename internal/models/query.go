package models

import (
	"fmt"
	"time"
)

// SearchQuery represents an entity search request with optional filters.
type SearchQuery struct {
	Query      string       `json:"query"`
	Types      []EntityType `json:"types,omitempty"`
	From       *time.Time   `json:"from,omitempty"`
	To         *time.Time   `json:"to,omitempty"`
	MaxResults int          `json:"max_results,omitempty"`
}

// Validate checks the filters and normalizes MaxResults to [1, maxLimit].
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	for _, t := range q.Types {
		if _, err := ParseEntityType(string(t)); err != nil {
			return err
		}
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return fmt.Errorf("invalid date range: from is after to")
	}
	if q.MaxResults <= 0 {
		q.MaxResults = defaultLimit
	}
	if maxLimit > 0 && q.MaxResults > maxLimit {
		q.MaxResults = maxLimit
	}
	return nil
}

// SearchResult is a single ranked entity hit.
type SearchResult struct {
	Entity    *Entity `json:"entity"`
	Score     float64 `json:"score"`
	MatchType string  `json:"match_type"` // "exact", "fuzzy" or "recent"
	Rank      int     `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}

// ConversationHit is a full-text conversation search hit.
type ConversationHit struct {
	Conversation *Conversation `json:"conversation"`
	Score        float64       `json:"score"`
}
