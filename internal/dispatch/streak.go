package dispatch

import "github.com/ayusman/jdemotion/internal/emotion"

// Streak counts how many consecutive frames produced the same label.
// A label is stable once it has been seen Required times in a row.
type Streak struct {
	required int
	label    emotion.Label
	count    int
}

// NewStreak creates a Streak. Values below 1 disable the check.
func NewStreak(required int) *Streak {
	if required < 1 {
		required = 1
	}
	return &Streak{required: required}
}

// Observe records label and reports whether it is now stable.
func (s *Streak) Observe(label emotion.Label) bool {
	if label == s.label {
		s.count++
	} else {
		s.label = label
		s.count = 1
	}
	return s.count >= s.required
}

// Reset clears the current run, e.g. after the face is lost.
func (s *Streak) Reset() {
	s.label = ""
	s.count = 0
}

// Count returns the length of the current run.
func (s *Streak) Count() int {
	return s.count
}
