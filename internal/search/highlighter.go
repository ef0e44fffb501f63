package search

import (
	"strings"

	"github.com/hyperjump/chatgraph/pkg/utils"
)

// Highlight returns up to maxLen runes of content around the first query term
// it contains, with "..." marking cut ends. Without a match the head of the
// content is returned.
func Highlight(content, query string, maxLen int) string {
	runes := []rune(content)
	if maxLen <= 0 || len(runes) <= maxLen {
		return content
	}
	lower := []rune(strings.ToLower(content))
	start := 0
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if i := indexRunes(lower, []rune(term)); i >= 0 {
			start = i - maxLen/4
			break
		}
	}
	if start <= 0 {
		return utils.Truncate(content, maxLen)
	}
	if start+maxLen > len(runes) {
		start = len(runes) - maxLen
	}
	out := utils.Ellipsis + strings.TrimLeft(string(runes[start:start+maxLen]), " ")
	if start+maxLen < len(runes) {
		out = strings.TrimRight(out, " ") + utils.Ellipsis
	}
	return out
}

func indexRunes(s, sub []rune) int {
	if len(sub) == 0 {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
