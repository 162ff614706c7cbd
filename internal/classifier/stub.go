package classifier

import (
	"errors"

	"github.com/ayusman/jdemotion/internal/emotion"
)

// Stub is a Classifier that replays fixed probability vectors.
type Stub struct {
	classes []string
	outputs []emotion.Probabilities
	index   int
	err     error
}

// NewStub creates a stub that returns outputs in order, repeating the last.
func NewStub(classes []string, outputs ...emotion.Probabilities) *Stub {
	return &Stub{classes: classes, outputs: outputs}
}

// SetError makes subsequent Predict calls fail.
func (s *Stub) SetError(err error) {
	s.err = err
}

// Predict returns the next configured vector.
func (s *Stub) Predict(feature []float64) (emotion.Probabilities, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.outputs) == 0 {
		return nil, errors.New("stub has no outputs")
	}

	p := s.outputs[s.index]
	if s.index < len(s.outputs)-1 {
		s.index++
	}
	return append(emotion.Probabilities(nil), p...), nil
}

// Classes returns the configured class names.
func (s *Stub) Classes() []string {
	return s.classes
}
