package processor

import "math"

// Mode selects which input conversations a run processes.
type Mode interface {
	isMode()
}

// Incremental processes conversations not yet in the store, in input order.
// MaxToProcess bounds the run; 0 processes everything pending.
type Incremental struct {
	MaxToProcess int
}

// ToEnd is a Range end that reaches the last input conversation.
const ToEnd = math.MaxInt

// Range processes the input slice [Start, End) unconditionally, even when its
// conversations were processed before. Bounds are clamped to the input, so an
// empty range such as Range{0, 0} processes nothing. Range runs leave the
// incremental checkpoint untouched.
type Range struct {
	Start int
	End   int
}

func modeName(m Mode) string {
	if _, ok := m.(Range); ok {
		return "range"
	}
	return "incremental"
}

func (Incremental) isMode() {}
func (Range) isMode()       {}

// bounds clamps r to an input of length n.
func (r Range) bounds(n int) (start, end int) {
	start, end = r.Start, r.End
	if end > n {
		end = n
	}
	if end < 0 {
		end = 0
	}
	if start < 0 {
		start = 0
	}
	if start > end {
		start = end
	}
	return start, end
}
