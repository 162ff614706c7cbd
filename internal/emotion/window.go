// Package emotion turns per-frame class probabilities into stable emotion labels.
package emotion

import "fmt"

// DefaultWindowSize is the number of frames averaged in continuous mode.
const DefaultWindowSize = 15

// Probabilities is a classifier output: one non-negative value per known class,
// summing to roughly 1.0.
type Probabilities []float64

// Window keeps the most recent probability vectors in a fixed-capacity ring.
// It is cleared whenever tracking is lost so an average never spans a gap.
type Window struct {
	buf   []Probabilities
	start int
	size  int
}

// NewWindow creates a Window holding at most capacity vectors.
// Capacities below 1 are raised to 1.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]Probabilities, capacity)}
}

// Push appends p, evicting the oldest vector once the window is full.
// Every vector in a window must have the same class count.
func (w *Window) Push(p Probabilities) {
	if w.size > 0 {
		if n := len(w.buf[w.start]); len(p) != n {
			panic(fmt.Sprintf("emotion: pushed %d classes into window of %d", len(p), n))
		}
	}

	v := make(Probabilities, len(p))
	copy(v, p)

	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = v
		w.size++
		return
	}

	// Full: overwrite the oldest slot and advance the head.
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
}

// Clear empties the window.
func (w *Window) Clear() {
	for i := range w.buf {
		w.buf[i] = nil
	}
	w.start = 0
	w.size = 0
}

// Average returns the element-wise mean of the vectors currently held.
// The second return value is false when the window is empty.
func (w *Window) Average() (Probabilities, bool) {
	if w.size == 0 {
		return nil, false
	}

	avg := make(Probabilities, len(w.buf[w.start]))
	for i := 0; i < w.size; i++ {
		for j, v := range w.buf[(w.start+i)%len(w.buf)] {
			avg[j] += v
		}
	}
	for j := range avg {
		avg[j] /= float64(w.size)
	}

	return avg, true
}

// Len returns the number of vectors in the window.
func (w *Window) Len() int {
	return w.size
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return len(w.buf)
}
