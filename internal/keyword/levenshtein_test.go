package keyword

import (
	"testing"

	"pgregory.net/rapid"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected int
	}{
		// Identical strings
		{"identical empty", "", "", 0},
		{"identical word", "hello", "hello", 0},
		{"identical unicode", "こんにちは", "こんにちは", 0},

		// Empty string cases
		{"empty a", "", "hello", 5},
		{"empty b", "hello", "", 5},
		{"empty unicode", "", "café", 4},

		// Single character differences
		{"one substitution", "cat", "bat", 1},
		{"one insertion", "cat", "cart", 1},
		{"one deletion", "cart", "cat", 1},

		// Multiple differences
		{"kitten to sitting", "kitten", "sitting", 3},
		{"saturday to sunday", "saturday", "sunday", 3},

		// Typos seen in entity names
		{"python to pythom", "python", "pythom", 1},
		{"john smith to jon smith", "john smith", "jon smith", 1},
		{"react native", "react native", "reakt nativ", 2},

		// Case sensitivity
		{"case difference", "Hello", "hello", 1},

		// Unicode
		{"unicode substitution", "café", "cafe", 1},

		// Transposition is two edits in plain Levenshtein
		{"transposition ab-ba", "ab", "ba", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := LevenshteinDistance(tt.a, tt.b)
			if result != tt.expected {
				t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, result, tt.expected)
			}
			resultReverse := LevenshteinDistance(tt.b, tt.a)
			if result != resultReverse {
				t.Errorf("LevenshteinDistance is not symmetric: (%q,%q)=%d, (%q,%q)=%d",
					tt.a, tt.b, result, tt.b, tt.a, resultReverse)
			}
		})
	}
}

func TestWithinDistance(t *testing.T) {
	if !WithinDistance("python", "pythom", 1) {
		t.Error("python/pythom should be within 1")
	}
	if WithinDistance("python", "pyt", 2) {
		t.Error("length difference 3 cannot be within 2")
	}
	if WithinDistance("a", "b", -1) {
		t.Error("negative max never matches distinct strings")
	}
}

func TestWithinDistance_AgreesWithDistance(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.StringMatching(`[a-d ]{0,8}`).Draw(rt, "a")
		b := rapid.StringMatching(`[a-d ]{0,8}`).Draw(rt, "b")
		max := rapid.IntRange(0, 4).Draw(rt, "max")
		want := LevenshteinDistance(a, b) <= max
		if got := WithinDistance(a, b, max); got != want {
			rt.Fatalf("WithinDistance(%q, %q, %d) = %v, want %v", a, b, max, got, want)
		}
	})
}
