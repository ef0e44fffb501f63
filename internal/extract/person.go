package extract

import (
	"regexp"

	"github.com/hyperjump/chatgraph/internal/models"
)

var (
	capitalWordRe = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
	indicatorRe   = regexp.MustCompile(`\b(?i:with|by|from|to|for|about|ask|meet|talk|call|email|message)\s+([A-Z][a-z]+)\b`)
)

// nonNames are capitalized words that commonly start sentences but never name a person.
var nonNames = toSet(
	// pronouns and determiners
	"I", "Me", "My", "Mine", "You", "Your", "Yours", "He", "Him", "His", "She", "Her", "Hers",
	"It", "Its", "We", "Us", "Our", "Ours", "They", "Them", "Their", "This", "That", "These",
	"Those", "The", "An", "Some", "Any", "Each", "Every", "All", "Both",
	// modal and auxiliary verbs
	"Can", "Could", "Would", "Should", "Will", "Shall", "May", "Might", "Must", "Do", "Does",
	"Did", "Is", "Are", "Was", "Were", "Have", "Has", "Had", "Let",
	// yes/no and status words
	"Yes", "No", "Not", "Ok", "Okay", "Sure", "Error", "Errors", "Warning", "Exception",
	"Failed", "Failure", "Success", "True", "False", "Null", "None", "Undefined",
	// assistant
	"Assistant", "Chat", "Gpt", "Openai",
	// sentence starters
	"Hello", "Hi", "Hey", "Thanks", "Thank", "Please", "Sorry", "What", "When", "Where", "Why",
	"How", "Who", "Which", "If", "But", "And", "Or", "So", "Then", "Also", "However", "Here",
	"There", "Now", "Today", "Tomorrow", "Yesterday", "Just", "Great", "Good", "Well", "Note",
	"First", "Second", "Next", "Finally", "Later", "Maybe", "Perhaps", "Actually", "Instead",
	"Anyway", "Otherwise", "Basically", "Hopefully", "Unfortunately", "Step", "Example", "For", "In", "On", "At", "By",
	"With", "From", "To", "Of", "After", "Before", "While", "Since", "Because", "Although",
	// calendar
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
	"January", "February", "March", "April", "June", "July", "August", "September",
	"October", "November", "December",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func isNonName(w string) bool {
	_, ok := nonNames[w]
	return ok
}

// extractPeople finds "First Last" pairs and single names introduced by a
// person indicator ("with Alice", "ask Bob").
func extractPeople(text string) []models.Candidate {
	var out []models.Candidate
	covered := make(map[int]struct{})

	words := capitalWordRe.FindAllStringIndex(text, -1)
	for i := 0; i+1 < len(words); i++ {
		a, b := words[i], words[i+1]
		// Exactly one space between the two words.
		if b[0] != a[1]+1 || text[a[1]] != ' ' {
			continue
		}
		first, last := text[a[0]:a[1]], text[b[0]:b[1]]
		if isNonName(first) || isNonName(last) {
			continue
		}
		out = append(out, models.Candidate{
			Type:    models.TypePerson,
			Name:    first + " " + last,
			Context: window(text, a[0], b[1], personRadius),
		})
		covered[a[0]] = struct{}{}
		covered[b[0]] = struct{}{}
		i++
	}

	for _, m := range indicatorRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		if _, ok := covered[start]; ok {
			continue
		}
		name := text[start:end]
		if isNonName(name) {
			continue
		}
		out = append(out, models.Candidate{
			Type:    models.TypePerson,
			Name:    name,
			Context: window(text, start, end, personRadius),
		})
	}
	return out
}
