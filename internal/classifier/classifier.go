// Package classifier turns face features into per-class probabilities.
package classifier

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ayusman/jdemotion/internal/emotion"
)

// ErrMalformedModel is returned when a model file cannot be used for prediction.
var ErrMalformedModel = errors.New("malformed model")

// DefaultClassNames is used when neither the model nor a class names file
// provides names and the model has four outputs.
var DefaultClassNames = []string{"ANGRY", "HAPPY", "SAD", "SURPRISED"}

// Classifier predicts a probability vector for a feature vector.
type Classifier interface {
	// Predict returns one probability per class, in Classes() order.
	Predict(feature []float64) (emotion.Probabilities, error)

	// Classes returns the trained class names.
	Classes() []string
}

// LoadClassNames reads class names from a text file, one per line.
// Blank lines and lines starting with '#' are ignored. Names are uppercased.
func LoadClassNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open class names: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, strings.ToUpper(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read class names: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("class names file %s is empty", path)
	}
	return names, nil
}

// ResolveClassNames picks the class names for a model. An override file wins,
// then the names stored in the model, then DefaultClassNames when the output
// count matches.
func ResolveClassNames(modelClasses []string, outputs int, overridePath string) ([]string, error) {
	names := modelClasses
	if overridePath != "" {
		loaded, err := LoadClassNames(overridePath)
		if err != nil {
			return nil, err
		}
		names = loaded
	}
	if len(names) == 0 {
		if outputs != len(DefaultClassNames) {
			return nil, fmt.Errorf("%w: %d outputs and no class names", ErrMalformedModel, outputs)
		}
		names = DefaultClassNames
	}
	if len(names) != outputs {
		return nil, fmt.Errorf("%w: %d class names for %d outputs", ErrMalformedModel, len(names), outputs)
	}

	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToUpper(strings.TrimSpace(n))
	}
	return out, nil
}
