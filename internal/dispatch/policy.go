// Package dispatch decides when a normalized label is worth sending to the robot.
package dispatch

import (
	"time"

	"github.com/ayusman/jdemotion/internal/emotion"
)

// DefaultMinInterval is the shortest gap between two sends in continuous mode.
const DefaultMinInterval = 750 * time.Millisecond

// Policy suppresses repeated and too-frequent sends. A label is eligible when
// it differs from the last label sent and at least MinInterval has passed
// since that send. The first label is always eligible.
//
// State only advances through RecordSent, which callers invoke after the
// controller confirmed the write.
type Policy struct {
	minInterval time.Duration
	gated       bool

	lastLabel emotion.Label
	lastAt    time.Time
	sent      bool
}

// NewPolicy creates a gated Policy with the given minimum interval.
func NewPolicy(minInterval time.Duration) *Policy {
	if minInterval < 0 {
		minInterval = 0
	}
	return &Policy{minInterval: minInterval, gated: true}
}

// NewUngatedPolicy creates a Policy that lets every label through. It still
// remembers the last send for status reporting.
func NewUngatedPolicy() *Policy {
	return &Policy{}
}

// ShouldSend reports whether label may be sent at now.
func (p *Policy) ShouldSend(label emotion.Label, now time.Time) bool {
	if !p.gated || !p.sent {
		return true
	}
	if label == p.lastLabel {
		return false
	}
	return now.Sub(p.lastAt) >= p.minInterval
}

// RecordSent stores a confirmed send.
func (p *Policy) RecordSent(label emotion.Label, now time.Time) {
	p.lastLabel = label
	p.lastAt = now
	p.sent = true
}

// Last returns the most recently recorded label and time. ok is false when
// nothing has been sent yet.
func (p *Policy) Last() (label emotion.Label, at time.Time, ok bool) {
	return p.lastLabel, p.lastAt, p.sent
}

// Reset forgets the last send.
func (p *Policy) Reset() {
	p.lastLabel = ""
	p.lastAt = time.Time{}
	p.sent = false
}

// Gated reports whether the change and interval rules are applied.
func (p *Policy) Gated() bool {
	return p.gated
}

// MinInterval returns the configured minimum interval.
func (p *Policy) MinInterval() time.Duration {
	return p.minInterval
}
