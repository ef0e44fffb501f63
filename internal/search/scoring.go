package search

import (
	"math"
	"strings"
	"time"

	"github.com/hyperjump/chatgraph/internal/keyword"
	"github.com/hyperjump/chatgraph/internal/models"
)

// Score weights.
const (
	nameSubstrPoints  = 10.0
	descSubstrPoints  = 5.0
	fuzzyWordPoints   = 3.0
	exactNameBonus    = 100.0
	namePrefixBonus   = 50.0
	popularityFactor  = 2.0
	weekRecencyBonus  = 10.0
	monthRecencyBonus = 5.0
	minFuzzyTokenLen  = 2
	maxFuzzyDistance  = 2
)

// fuzzyThreshold returns the edit distance allowed for a token: min(2, len/3).
func fuzzyThreshold(token string) int {
	n := len([]rune(token)) / 3
	if n > maxFuzzyDistance {
		return maxFuzzyDistance
	}
	return n
}

// patternPoints scores one entity against the query tokens. matched reports
// whether at least one token scored.
func patternPoints(e *models.Entity, tokens []string) (points float64, matched bool) {
	name := strings.ToLower(e.Name)
	desc := strings.ToLower(e.Description)
	var words []string
	for _, tok := range tokens {
		if len([]rune(tok)) < minFuzzyTokenLen {
			continue
		}
		switch {
		case strings.Contains(name, tok):
			points += nameSubstrPoints
		case strings.Contains(desc, tok):
			points += descSubstrPoints
		default:
			limit := fuzzyThreshold(tok)
			if limit == 0 {
				continue
			}
			if words == nil {
				words = strings.Fields(name + " " + desc)
			}
			if !anyWordWithin(words, tok, limit) {
				continue
			}
			points += fuzzyWordPoints
		}
		matched = true
	}
	return points, matched
}

func anyWordWithin(words []string, tok string, limit int) bool {
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if keyword.WithinDistance(w, tok, limit) {
			return true
		}
	}
	return false
}

// finalScore adds name, popularity and recency terms to the pattern points.
func finalScore(e *models.Entity, query string, points float64, now time.Time) float64 {
	score := points
	name := strings.ToLower(strings.TrimSpace(e.Name))
	if name == query {
		score += exactNameBonus
	}
	if query != "" && strings.HasPrefix(name, query) {
		score += namePrefixBonus
	}
	score += math.Log(float64(e.Occurrences)+1) * popularityFactor
	age := now.Sub(e.LastSeen)
	switch {
	case age <= 7*24*time.Hour:
		score += weekRecencyBonus
	case age <= 30*24*time.Hour:
		score += monthRecencyBonus
	}
	return score
}

// matchesFilters applies the type filter and the date-range overlap filter.
func matchesFilters(e *models.Entity, q *models.SearchQuery) bool {
	if len(q.Types) > 0 {
		ok := false
		for _, t := range q.Types {
			if e.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if q.From != nil && e.LastSeen.Before(*q.From) {
		return false
	}
	if q.To != nil && e.FirstSeen.After(*q.To) {
		return false
	}
	return true
}
