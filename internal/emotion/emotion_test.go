package emotion

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestWindow_EvictsOldestFirst(t *testing.T) {
	w := NewWindow(3)

	for i := 0; i < 5; i++ {
		w.Push(Probabilities{float64(i), 1})
	}

	if w.Len() != w.Cap() {
		t.Fatalf("expected window to be full, got %d of %d", w.Len(), w.Cap())
	}

	avg, ok := w.Average()
	if !ok {
		t.Fatal("expected an average from a full window")
	}

	// Only frames 2, 3 and 4 remain.
	if !almostEqual(avg[0], 3.0) {
		t.Errorf("expected mean of last three vectors (3.0), got %f", avg[0])
	}
	if !almostEqual(avg[1], 1.0) {
		t.Errorf("expected second class mean 1.0, got %f", avg[1])
	}
}

func TestWindow_PartialFill(t *testing.T) {
	w := NewWindow(DefaultWindowSize)
	w.Push(Probabilities{0.8, 0.2})
	w.Push(Probabilities{0.6, 0.4})

	if w.Len() != 2 {
		t.Errorf("expected 2 vectors, got %d", w.Len())
	}

	avg, ok := w.Average()
	if !ok {
		t.Fatal("expected an average")
	}
	if !almostEqual(avg[0], 0.7) || !almostEqual(avg[1], 0.3) {
		t.Errorf("unexpected average %v", avg)
	}
}

func TestWindow_ClearThenAverage(t *testing.T) {
	w := NewWindow(4)
	w.Push(Probabilities{0.5, 0.5})
	w.Clear()

	if w.Len() != 0 {
		t.Errorf("expected empty window after Clear, got %d", w.Len())
	}
	if avg, ok := w.Average(); ok {
		t.Errorf("expected no average after Clear, got %v", avg)
	}

	// The window is usable again after a gap.
	w.Push(Probabilities{0.1, 0.9})
	avg, ok := w.Average()
	if !ok || !almostEqual(avg[1], 0.9) {
		t.Errorf("expected only post-gap vector in average, got %v", avg)
	}
}

func TestWindow_PushCopiesInput(t *testing.T) {
	w := NewWindow(2)
	p := Probabilities{0.9, 0.1}
	w.Push(p)
	p[0] = 0

	avg, _ := w.Average()
	if !almostEqual(avg[0], 0.9) {
		t.Errorf("window must not alias caller slices, got %v", avg)
	}
}

func TestWindow_MismatchedClassCountPanics(t *testing.T) {
	w := NewWindow(2)
	w.Push(Probabilities{0.5, 0.5})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on class count mismatch")
		}
	}()
	w.Push(Probabilities{1})
}

func TestNewWindow_MinimumCapacity(t *testing.T) {
	if got := NewWindow(0).Cap(); got != 1 {
		t.Errorf("expected capacity 1, got %d", got)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		probs     Probabilities
		confident bool
		class     int
		top       float64
		second    float64
	}{
		{
			name:      "clear winner",
			probs:     Probabilities{0.7, 0.2, 0.1},
			confident: true,
			class:     0,
			top:       0.7,
			second:    0.2,
		},
		{
			name:   "margin too small",
			probs:  Probabilities{0.5, 0.45, 0.05},
			class:  -1,
			top:    0.5,
			second: 0.45,
		},
		{
			name:   "below threshold",
			probs:  Probabilities{0.4, 0.35, 0.25},
			class:  -1,
			top:    0.4,
			second: 0.35,
		},
		{
			name:      "winner not first",
			probs:     Probabilities{0.05, 0.1, 0.85},
			confident: true,
			class:     2,
			top:       0.85,
			second:    0.1,
		},
		{
			name:      "single class",
			probs:     Probabilities{1.0},
			confident: true,
			class:     0,
			top:       1.0,
			second:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.probs, DefaultThreshold, DefaultMargin)

			if d.Confident != tt.confident {
				t.Errorf("Confident = %v, want %v", d.Confident, tt.confident)
			}
			if d.Class != tt.class {
				t.Errorf("Class = %d, want %d", d.Class, tt.class)
			}
			if !almostEqual(d.Top, tt.top) {
				t.Errorf("Top = %f, want %f", d.Top, tt.top)
			}
			if !almostEqual(d.Second, tt.second) {
				t.Errorf("Second = %f, want %f", d.Second, tt.second)
			}
		})
	}
}

func TestDecide_TieBreaksOnLowestIndex(t *testing.T) {
	probs := Probabilities{0.1, 0.45, 0.45}

	// A zero margin lets a tie through; the lower index must win.
	d := Decide(probs, 0.4, 0)
	if !d.Confident || d.Class != 1 {
		t.Errorf("expected class 1 to win the tie, got %+v", d)
	}
}

func TestDecide_Deterministic(t *testing.T) {
	probs := Probabilities{0.3, 0.3, 0.4}
	first := Decide(probs, 0.35, 0.05)

	for i := 0; i < 100; i++ {
		if got := Decide(probs, 0.35, 0.05); got != first {
			t.Fatalf("run %d: got %+v, want %+v", i, got, first)
		}
	}
}

func TestDecide_NaNIsUncertain(t *testing.T) {
	nan := math.NaN()
	for _, probs := range []Probabilities{
		{nan, 0.9, 0.05},
		{0.05, 0.9, nan},
		{nan, nan},
	} {
		d := Decide(probs, DefaultThreshold, DefaultMargin)
		if d.Confident || d.Class != -1 {
			t.Errorf("Decide(%v) = %+v, want uncertain", probs, d)
		}
	}
}

func TestDecide_Empty(t *testing.T) {
	if d := Decide(nil, DefaultThreshold, DefaultMargin); d.Confident {
		t.Errorf("expected uncertain decision for empty input, got %+v", d)
	}
}

func TestNormalizer_UncertainIsNeutral(t *testing.T) {
	classSets := [][]string{
		{"ANGRY", "HAPPY", "SAD", "SURPRISED"},
		{"happy"},
		{"Neutral", "Sad"},
	}

	for _, names := range classSets {
		n, err := NewNormalizer(DefaultTable(), names)
		if err != nil {
			t.Fatalf("NewNormalizer(%v) error = %v", names, err)
		}

		d := Decision{Class: -1, Top: 0.4, Second: 0.35}
		if got := n.Normalize(d); got != Neutral {
			t.Errorf("Normalize(uncertain) with %v = %q, want neutral", names, got)
		}
	}
}

func TestNormalizer_EveryTableEntry(t *testing.T) {
	table := DefaultTable()

	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}

	n, err := NewNormalizer(table, names)
	if err != nil {
		t.Fatalf("NewNormalizer() error = %v", err)
	}

	for i, name := range names {
		d := Decision{Confident: true, Class: i, Top: 0.9, Second: 0.05}
		if got, want := n.Normalize(d), table[name]; got != want {
			t.Errorf("class %q normalized to %q, want %q", name, got, want)
		}
	}
}

func TestNormalizer_CaseInsensitive(t *testing.T) {
	n, err := NewNormalizer(DefaultTable(), []string{"ANGRY", "Happy"})
	if err != nil {
		t.Fatalf("NewNormalizer() error = %v", err)
	}

	if got := n.Normalize(Decision{Confident: true, Class: 0}); got != Mad {
		t.Errorf("ANGRY normalized to %q, want mad", got)
	}
	if got := n.Normalize(Decision{Confident: true, Class: 1}); got != Happy {
		t.Errorf("Happy normalized to %q, want happy", got)
	}
}

func TestNormalizer_OutOfRangeClass(t *testing.T) {
	n, err := NewNormalizer(DefaultTable(), []string{"happy", "sad"})
	if err != nil {
		t.Fatalf("NewNormalizer() error = %v", err)
	}

	if got := n.Normalize(Decision{Confident: true, Class: 7}); got != Neutral {
		t.Errorf("out-of-range class normalized to %q, want neutral", got)
	}
}

func TestNewNormalizer_UnmappedClass(t *testing.T) {
	_, err := NewNormalizer(DefaultTable(), []string{"happy", "confused"})
	if !errors.Is(err, ErrUnmappedClass) {
		t.Fatalf("expected ErrUnmappedClass, got %v", err)
	}
}

func TestNewNormalizer_UnknownTargetLabel(t *testing.T) {
	table := Table{"happy": Label("ecstatic")}
	if _, err := NewNormalizer(table, []string{"happy"}); err == nil {
		t.Fatal("expected error for table entry outside the vocabulary")
	}
}

func TestParseLabel(t *testing.T) {
	if l, err := ParseLabel("  Surprised "); err != nil || l != Surprised {
		t.Errorf("ParseLabel() = %q, %v", l, err)
	}
	if _, err := ParseLabel("confused"); err == nil {
		t.Error("expected error for unknown label")
	}
	if _, err := ParseLabel(string(NoFace)); err == nil {
		t.Error("no-face must not parse as an output label")
	}
}

func TestLabel_Title(t *testing.T) {
	if got := Mad.Title(); got != "Mad" {
		t.Errorf("Title() = %q, want Mad", got)
	}
	if got := Label("").Title(); got != "" {
		t.Errorf("Title() of empty label = %q", got)
	}
}
