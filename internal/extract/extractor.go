// Package extract turns conversation text into candidate entities using
// pattern heuristics.
package extract

import (
	"errors"
	"strings"

	"github.com/hyperjump/chatgraph/internal/keyword"
	"github.com/hyperjump/chatgraph/internal/models"
)

// ErrNoText is returned when a conversation has neither text nor messages.
var ErrNoText = errors.New("conversation has no text")

// Context radius per entity type, in bytes on either side of the match.
const (
	personRadius   = 100
	projectRadius  = 150
	phraseRadius   = 150
	questionRadius = 100
)

// Display name limits for phrase-derived entities.
const (
	phraseNameMax   = 50
	questionNameMax = 60
)

// Extractor extracts candidate entities from conversation text.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the candidates found in text and in the user-authored messages.
// text is the concatenation of all message parts; messages keep the role of each
// part for role-sensitive rules. Candidates repeating the same type and key within
// one conversation are reported once.
func (e *Extractor) Extract(text string, messages []models.Message) ([]models.Candidate, error) {
	if strings.TrimSpace(text) == "" && len(messages) == 0 {
		return nil, ErrNoText
	}
	text = sanitize(text)

	var found []models.Candidate
	found = append(found, extractPeople(text)...)
	found = append(found, extractProjects(text)...)
	found = append(found, extractPhrases(text, models.TypeKnowledge, knowledgeRules)...)
	found = append(found, extractPhrases(text, models.TypeThought, thoughtRules)...)
	for _, m := range messages {
		if !m.IsUser() {
			continue
		}
		found = append(found, extractQuestions(sanitize(m.Content))...)
	}
	return dedupe(found), nil
}

func dedupe(in []models.Candidate) []models.Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.Candidate, 0, len(in))
	for _, c := range in {
		key := string(c.Type) + "\x00" + keyword.NormalizeKey(c.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
