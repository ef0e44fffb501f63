package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/chatgraph/internal/models"
)

const (
	minProjectName = 4
	maxProjectName = 49
)

var projectRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:working on|building|creating|developing|making)\s+(?:an?\s+)?(?:new\s+)?([\w][\w\- ]*?)\s*(?:[.,;:!?\n()"]|$)`),
	regexp.MustCompile(`(?i)\b(?:project|app|system|tool|website|platform)\s+(?:called|named)\s+["']?([\w][\w\-. ]*?)["']?\s*(?:[,;:!?\n()"]|\.(?:\s|$)|$)`),
	regexp.MustCompile(`(?i)\b(?:my|our|the)\s+([\w][\w\-]*(?: [\w\-]+){0,2}?)\s+(?:project|app|application|system|tool|website|platform)\b`),
}

// extractProjects finds project names introduced by building verbs, naming
// phrases, or "my X project" forms.
func extractProjects(text string) []models.Candidate {
	var out []models.Candidate
	for _, re := range projectRules {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2], m[3]
			name := strings.TrimSpace(text[start:end])
			n := utf8.RuneCountInString(name)
			if n < minProjectName || n > maxProjectName {
				continue
			}
			out = append(out, models.Candidate{
				Type:        models.TypeProject,
				Name:        name,
				Description: name,
				Context:     window(text, start, end, projectRadius),
			})
		}
	}
	return out
}
