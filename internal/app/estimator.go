package app

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/jdemotion/internal/classifier"
	"github.com/ayusman/jdemotion/internal/detector"
	"github.com/ayusman/jdemotion/internal/emotion"
)

// Estimator turns a frame into class probabilities. ok is false when the
// frame has no usable face.
type Estimator interface {
	Estimate(frame *gocv.Mat) (probs emotion.Probabilities, ok bool, err error)
}

// FaceEstimator runs landmark detection, feature normalization and
// classification.
type FaceEstimator struct {
	detector   detector.Detector
	classifier classifier.Classifier
}

// NewFaceEstimator creates an Estimator from a detector and a classifier.
func NewFaceEstimator(d detector.Detector, c classifier.Classifier) *FaceEstimator {
	return &FaceEstimator{detector: d, classifier: c}
}

// Estimate implements Estimator.
func (e *FaceEstimator) Estimate(frame *gocv.Mat) (emotion.Probabilities, bool, error) {
	face, err := e.detector.Detect(frame)
	if err != nil {
		return nil, false, fmt.Errorf("detect: %w", err)
	}

	feature, ok := detector.Feature(face)
	if !ok {
		return nil, false, nil
	}

	probs, err := e.classifier.Predict(feature)
	if err != nil {
		return nil, false, fmt.Errorf("classify: %w", err)
	}
	return probs, true, nil
}

// Close releases the detector.
func (e *FaceEstimator) Close() error {
	return e.detector.Close()
}
