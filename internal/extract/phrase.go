package extract

import (
	"regexp"
	"strings"

	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/pkg/utils"
)

// Phrase bodies run 10 to 200 characters up to the next sentence terminator.
const phraseBody = `([^.!?\n]{10,200})(?:[.!?\n]|$)`

var knowledgeRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bI\s+(?:learned|discovered|found out|realized|understood)\s+(?:that\s+)?` + phraseBody),
	regexp.MustCompile(`(?i)\b(?:TIL|today I learned)\s*:\s*` + phraseBody),
}

var thoughtRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:I\s+(?:think|believe|feel)|my opinion is|in my view)\s+(?:that\s+)?` + phraseBody),
	regexp.MustCompile(`(?i)\b(?:my idea is|my thought is|what if)\s+(?:that\s+)?` + phraseBody),
}

// extractPhrases applies sentence rules for knowledge or thought entities.
// The full phrase becomes the description; the name is the phrase shortened
// to a display length.
func extractPhrases(text string, typ models.EntityType, rules []*regexp.Regexp) []models.Candidate {
	var out []models.Candidate
	for _, re := range rules {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2], m[3]
			phrase := utils.CollapseSpace(strings.TrimSpace(text[start:end]))
			if len(phrase) < 10 {
				continue
			}
			out = append(out, models.Candidate{
				Type:        typ,
				Name:        utils.Truncate(phrase, phraseNameMax),
				Description: phrase,
				Context:     window(text, start, end, phraseRadius),
			})
		}
	}
	return out
}
