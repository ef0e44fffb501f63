package keyword

// LevenshteinDistance calculates the minimum number of single-character edits
// (insertions, deletions, or substitutions) required to change one string into another.
// This is a pure function with no side effects.
func LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	runesA := []rune(a)
	runesB := []rune(b)
	if len(runesA) == 0 {
		return len(runesB)
	}
	if len(runesB) == 0 {
		return len(runesA)
	}
	return distance(runesA, runesB)
}

// WithinDistance reports whether LevenshteinDistance(a, b) <= max.
// Pairs whose rune lengths differ by more than max are rejected without
// filling the matrix.
func WithinDistance(a, b string, max int) bool {
	if a == b {
		return true
	}
	if max < 0 {
		return false
	}
	runesA := []rune(a)
	runesB := []rune(b)
	diff := len(runesA) - len(runesB)
	if diff < 0 {
		diff = -diff
	}
	if diff > max {
		return false
	}
	return distance(runesA, runesB) <= max
}

func distance(runesA, runesB []rune) int {
	lenA := len(runesA)
	lenB := len(runesB)

	// Only two rows of the matrix are needed at a time.
	prev := make([]int, lenB+1)
	curr := make([]int, lenB+1)
	for j := 0; j <= lenB; j++ {
		prev[j] = j
	}

	for i := 1; i <= lenA; i++ {
		curr[0] = i
		for j := 1; j <= lenB; j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 1
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[lenB]
}

func min3(a, b, c int) int {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}
