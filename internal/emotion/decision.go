package emotion

import (
	"math"
	"sort"
)

// Default decision tuning.
const (
	DefaultThreshold = 0.55
	DefaultMargin    = 0.15
)

// Decision is the outcome of applying the threshold/margin rule to an
// averaged probability vector.
type Decision struct {
	Confident bool    // true when Class cleared both threshold and margin
	Class     int     // index of the winning class; -1 when uncertain
	Top       float64 // highest averaged probability
	Second    float64 // runner-up probability, 0 with a single class
}

// Uncertain reports whether the decision fell back to the uncertain state.
func (d Decision) Uncertain() bool {
	return !d.Confident
}

// Decide picks the top class of avg when it is at least threshold and leads
// the runner-up by at least margin. Equal values rank by lower class index.
// A vector holding NaN is uncertain.
func Decide(avg Probabilities, threshold, margin float64) Decision {
	if len(avg) == 0 {
		return Decision{Class: -1}
	}
	for _, p := range avg {
		if math.IsNaN(p) {
			return Decision{Class: -1}
		}
	}

	idx := make([]int, len(avg))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return avg[idx[a]] > avg[idx[b]]
	})

	top := avg[idx[0]]
	second := 0.0
	if len(idx) > 1 {
		second = avg[idx[1]]
	}

	if top < threshold || (top-second) < margin {
		return Decision{Class: -1, Top: top, Second: second}
	}

	return Decision{
		Confident: true,
		Class:     idx[0],
		Top:       top,
		Second:    second,
	}
}
