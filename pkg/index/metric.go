package index

import (
	"slices"

	"github.com/japaniel/tokisama/pkg/dictionary"
)

// Metric scores how far apart two compounds are; smaller is closer.
type Metric interface {
	Distance(a, b dictionary.CompoundWord) int
}

// MetricFunc adapts a function to Metric.
type MetricFunc func(a, b dictionary.CompoundWord) int

func (f MetricFunc) Distance(a, b dictionary.CompoundWord) int { return f(a, b) }

// Overlap is the default heuristic:
//
//	|a| + |b| - 2 * #{x in b : x occurs in a}
//
// a is treated as an unordered multiset, so a word repeated in b may match
// the same word of a twice. It is not a true metric. Repeats make it
// asymmetric, and after clamping at zero it can fall below ||a| - |b||.
type Overlap struct{}

func (Overlap) Distance(a, b dictionary.CompoundWord) int {
	d := len(a) + len(b)
	for _, x := range b {
		if slices.Contains(a, x) {
			d -= 2
		}
	}
	return max(d, 0)
}
