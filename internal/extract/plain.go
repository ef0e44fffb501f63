package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/chatgraph/pkg/utils"
)

// sanitize returns text as valid UTF-8. Invalid sequences are replaced with
// the replacement character.
func sanitize(text string) string {
	if !utf8.ValidString(text) {
		return strings.ToValidUTF8(text, "�")
	}
	return text
}

// window returns the text within radius bytes on either side of [start, end),
// widened to rune boundaries and with whitespace collapsed.
func window(text string, start, end, radius int) string {
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return utils.CollapseSpace(text[lo:hi])
}
