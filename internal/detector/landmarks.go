// Package detector provides face landmark detection and feature extraction for emotion recognition.
package detector

import "math"

// Face mesh landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	LeftEyeOuter  = 33
	RightEyeOuter = 263

	// NumLandmarks is the mesh size without iris refinement.
	NumLandmarks = 468
	// NumRefinedLandmarks is the mesh size with iris refinement.
	NumRefinedLandmarks = 478
)

// Point3D represents a 3D point in pixel space. Z uses the same scale as X.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FaceLandmarks represents the mesh of a single detected face.
type FaceLandmarks struct {
	Points []Point3D `json:"points"`
}

// Feature converts face landmarks into the classifier input vector.
//
// Points are centered on their centroid and divided by the distance between
// the outer eye corners (in the image plane). When the eye corners are missing
// or coincide, the RMS radius of the centered points is used instead. The
// result is the flattened x, y, z of every point.
func Feature(f *FaceLandmarks) ([]float64, bool) {
	if f == nil || len(f.Points) == 0 {
		return nil, false
	}

	n := float64(len(f.Points))

	var cx, cy, cz float64
	for _, p := range f.Points {
		cx += p.X
		cy += p.Y
		cz += p.Z
	}
	cx, cy, cz = cx/n, cy/n, cz/n

	scale := eyeDistance(f.Points)
	if scale <= 1e-6 {
		var sum float64
		for _, p := range f.Points {
			dx, dy := p.X-cx, p.Y-cy
			sum += dx*dx + dy*dy
		}
		scale = math.Sqrt(sum / (2 * n))
		if scale <= 1e-6 {
			scale = 1.0
		}
	}

	feature := make([]float64, 0, len(f.Points)*3)
	for _, p := range f.Points {
		feature = append(feature,
			(p.X-cx)/scale,
			(p.Y-cy)/scale,
			(p.Z-cz)/scale,
		)
	}

	return feature, true
}

// eyeDistance returns the 2D distance between the outer eye corners, or 0
// when the mesh is too small to contain them.
func eyeDistance(points []Point3D) float64 {
	if len(points) <= RightEyeOuter {
		return 0
	}
	l, r := points[LeftEyeOuter], points[RightEyeOuter]
	return math.Hypot(l.X-r.X, l.Y-r.Y)
}
