package emotion

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Label is a normalized emotion understood by the robot controller.
type Label string

// Output vocabulary.
const (
	Happy     Label = "happy"
	Sad       Label = "sad"
	Mad       Label = "mad"
	Surprised Label = "surprised"
	Neutral   Label = "neutral"

	// NoFace marks frames without a usable face. It is produced by the
	// session loop and never passes through a Normalizer.
	NoFace Label = "no-face"
)

// Labels lists the vocabulary that may be sent to the controller.
var Labels = []Label{Happy, Sad, Mad, Surprised, Neutral}

// ErrUnmappedClass is returned when a trained class has no table entry.
var ErrUnmappedClass = errors.New("class has no label mapping")

// ParseLabel parses a vocabulary word, ignoring case and surrounding space.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Labels {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown label %q", s)
}

// Title returns the label with its first letter upper-cased ("Happy"),
// the form the controller uses for frame names and speech.
func (l Label) Title() string {
	if l == "" {
		return ""
	}
	return strings.ToUpper(string(l[:1])) + string(l[1:])
}

// Table maps lower-cased classifier class names to output labels.
type Table map[string]Label

// DefaultTable is the class mapping shipped with the trained models.
// There is no "confused" output; angry is spoken as "mad".
func DefaultTable() Table {
	return Table{
		"angry":     Mad,
		"mad":       Mad,
		"happy":     Happy,
		"sad":       Sad,
		"surprised": Surprised,
		"neutral":   Neutral,
	}
}

// Lookup finds the label for a class name, ignoring case.
func (t Table) Lookup(className string) (Label, bool) {
	l, ok := t[strings.ToLower(strings.TrimSpace(className))]
	return l, ok
}

// Normalizer converts decisions into labels for a fixed list of classes.
// The class list is checked against the table once, at construction.
type Normalizer struct {
	classes []string
	labels  []Label
}

// NewNormalizer compiles table for classNames. Every class must be covered
// by the table and map to a known label.
func NewNormalizer(table Table, classNames []string) (*Normalizer, error) {
	if len(classNames) == 0 {
		return nil, errors.New("no class names")
	}

	n := &Normalizer{
		classes: append([]string(nil), classNames...),
		labels:  make([]Label, len(classNames)),
	}

	var missing []string
	for i, name := range classNames {
		l, ok := table.Lookup(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		if _, err := ParseLabel(string(l)); err != nil {
			return nil, fmt.Errorf("class %q: %w", name, err)
		}
		n.labels[i] = l
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrUnmappedClass, strings.Join(missing, ", "))
	}

	return n, nil
}

// Normalize maps a decision to its label. Uncertain decisions and class
// indexes outside the class list become Neutral.
func (n *Normalizer) Normalize(d Decision) Label {
	if !d.Confident || d.Class < 0 || d.Class >= len(n.labels) {
		return Neutral
	}
	return n.labels[d.Class]
}

// Classes returns the class names the normalizer was built for.
func (n *Normalizer) Classes() []string {
	return append([]string(nil), n.classes...)
}

// Mapping returns the compiled class-to-label pairs in class order.
func (n *Normalizer) Mapping() map[string]Label {
	m := make(map[string]Label, len(n.classes))
	for i, c := range n.classes {
		m[c] = n.labels[i]
	}
	return m
}
