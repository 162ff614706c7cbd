package detector

import (
	"math"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	faces []*FaceLandmarks
	index int
	err   error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFace sets the face that will be returned by every Detect call.
// A nil face simulates an empty frame.
func (m *MockDetector) SetFace(face *FaceLandmarks) {
	m.faces = []*FaceLandmarks{face}
	m.index = 0
}

// SetSequence sets faces returned by successive Detect calls. The last entry
// repeats once the sequence is exhausted.
func (m *MockDetector) SetSequence(faces []*FaceLandmarks) {
	m.faces = faces
	m.index = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Detect returns the pre-configured face or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*FaceLandmarks, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.faces) == 0 {
		return nil, nil
	}

	face := m.faces[m.index]
	if m.index < len(m.faces)-1 {
		m.index++
	}
	return face, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// SyntheticFace returns a refined-size mesh laid out on an ellipse around
// (cx, cy), with the outer eye corners placed eyeSpan pixels apart.
func SyntheticFace(cx, cy, eyeSpan float64) *FaceLandmarks {
	face := &FaceLandmarks{Points: make([]Point3D, NumRefinedLandmarks)}

	for i := range face.Points {
		angle := 2 * math.Pi * float64(i) / float64(NumRefinedLandmarks)
		face.Points[i] = Point3D{
			X: cx + eyeSpan*0.9*math.Cos(angle),
			Y: cy + eyeSpan*1.2*math.Sin(angle),
			Z: eyeSpan * 0.1 * math.Sin(2*angle),
		}
	}

	face.Points[LeftEyeOuter] = Point3D{X: cx - eyeSpan/2, Y: cy - eyeSpan*0.3}
	face.Points[RightEyeOuter] = Point3D{X: cx + eyeSpan/2, Y: cy - eyeSpan*0.3}

	return face
}
