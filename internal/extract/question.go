package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/pkg/utils"
)

const minQuestionLen = 10

var questionRe = regexp.MustCompile(`[^.!?\n]*\?`)

// extractQuestions returns one candidate per question fragment in a user message.
func extractQuestions(content string) []models.Candidate {
	var out []models.Candidate
	for _, m := range questionRe.FindAllStringIndex(content, -1) {
		q := utils.CollapseSpace(strings.TrimSpace(content[m[0]:m[1]]))
		if utf8.RuneCountInString(q) <= minQuestionLen {
			continue
		}
		out = append(out, models.Candidate{
			Type:        models.TypeQuestion,
			Name:        utils.Truncate(q, questionNameMax),
			Description: q,
			Context:     window(content, m[0], m[1], questionRadius),
		})
	}
	return out
}
