package detector

import "gocv.io/x/gocv"

// Detector defines the interface for face landmark detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the landmarks of the most
	// prominent face. It returns nil landmarks when no face is visible.
	Detect(frame *gocv.Mat) (*FaceLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face landmark detection.
type Config struct {
	// Script is the path to the face mesh service. Empty means search the
	// usual locations.
	Script string

	// Python is the interpreter used to run the service. Empty means a
	// virtual environment if one is found, python3 otherwise.
	Python string

	// RefineLandmarks adds the iris points (478 landmarks instead of 468).
	RefineLandmarks bool

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns the settings the emotion models were trained with.
func DefaultConfig() Config {
	return Config{
		RefineLandmarks: true,
		MinConfidence:   0.6,
		MinTrackingConf: 0.5,
	}
}
