package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/ayusman/jdemotion/internal/emotion"
)

// modelFile is the exported model format: a multinomial logistic regression
// with an optional standard scaler in front of it.
type modelFile struct {
	Classes []string    `json:"classes,omitempty"`
	Mean    []float64   `json:"mean,omitempty"`
	Scale   []float64   `json:"scale,omitempty"`
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

// LinearModel is a softmax classifier over standardized features.
type LinearModel struct {
	classes []string
	mean    []float64
	scale   []float64
	weights [][]float64
	bias    []float64
}

// LoadModel reads a model exported as JSON. classNamesPath optionally
// overrides the class names stored in the model.
func LoadModel(path, classNamesPath string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModel, err)
	}

	classes, err := ResolveClassNames(mf.Classes, len(mf.Weights), classNamesPath)
	if err != nil {
		return nil, err
	}
	mf.Classes = classes

	return newLinearModel(mf)
}

// NewLinearModel builds a model from weights (one row per class) and bias.
func NewLinearModel(classes []string, weights [][]float64, bias []float64) (*LinearModel, error) {
	return newLinearModel(modelFile{Classes: classes, Weights: weights, Bias: bias})
}

func newLinearModel(mf modelFile) (*LinearModel, error) {
	k := len(mf.Weights)
	if k == 0 {
		return nil, fmt.Errorf("%w: no weights", ErrMalformedModel)
	}
	if len(mf.Classes) != k {
		return nil, fmt.Errorf("%w: %d classes for %d weight rows", ErrMalformedModel, len(mf.Classes), k)
	}
	if len(mf.Bias) != k {
		return nil, fmt.Errorf("%w: %d bias values for %d classes", ErrMalformedModel, len(mf.Bias), k)
	}

	dim := len(mf.Weights[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty weight row", ErrMalformedModel)
	}
	for i, row := range mf.Weights {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: weight row %d has %d values, want %d", ErrMalformedModel, i, len(row), dim)
		}
	}
	if mf.Mean != nil && len(mf.Mean) != dim {
		return nil, fmt.Errorf("%w: mean has %d values, want %d", ErrMalformedModel, len(mf.Mean), dim)
	}
	if mf.Scale != nil {
		if len(mf.Scale) != dim {
			return nil, fmt.Errorf("%w: scale has %d values, want %d", ErrMalformedModel, len(mf.Scale), dim)
		}
		for i, s := range mf.Scale {
			if s == 0 {
				return nil, fmt.Errorf("%w: scale %d is zero", ErrMalformedModel, i)
			}
		}
	}

	return &LinearModel{
		classes: mf.Classes,
		mean:    mf.Mean,
		scale:   mf.Scale,
		weights: mf.Weights,
		bias:    mf.Bias,
	}, nil
}

// Classes returns the class names in output order.
func (m *LinearModel) Classes() []string {
	return append([]string(nil), m.classes...)
}

// Dim returns the expected feature length.
func (m *LinearModel) Dim() int {
	return len(m.weights[0])
}

// Predict computes softmax(W·x + b) over the standardized feature.
func (m *LinearModel) Predict(feature []float64) (emotion.Probabilities, error) {
	if len(feature) != m.Dim() {
		return nil, fmt.Errorf("feature has %d values, model expects %d", len(feature), m.Dim())
	}

	x := feature
	if m.mean != nil || m.scale != nil {
		x = make([]float64, len(feature))
		for i, v := range feature {
			if m.mean != nil {
				v -= m.mean[i]
			}
			if m.scale != nil {
				v /= m.scale[i]
			}
			x[i] = v
		}
	}

	logits := make([]float64, len(m.weights))
	for c, row := range m.weights {
		z := m.bias[c]
		for i, w := range row {
			z += w * x[i]
		}
		logits[c] = z
	}

	return softmax(logits), nil
}

func softmax(logits []float64) emotion.Probabilities {
	maxLogit := math.Inf(-1)
	for _, z := range logits {
		if z > maxLogit {
			maxLogit = z
		}
	}

	out := make(emotion.Probabilities, len(logits))
	var sum float64
	for i, z := range logits {
		out[i] = math.Exp(z - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
