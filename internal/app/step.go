package app

import (
	"time"

	"github.com/ayusman/jdemotion/internal/arc"
	"github.com/ayusman/jdemotion/internal/dispatch"
	"github.com/ayusman/jdemotion/internal/emotion"
	"github.com/ayusman/jdemotion/internal/store"
)

// Outcome describes what one frame did.
type Outcome struct {
	Face      bool
	Label     emotion.Label
	Decision  emotion.Decision
	WindowLen int
	Stable    bool
	Eligible  bool
	Sent      bool
	Commands  []string
	Err       error
}

// Step advances continuous mode by one frame. ok is false when the frame had
// no usable face; the window is then cleared so a later decision never mixes
// probabilities from both sides of the gap.
func (s *Session) Step(probs emotion.Probabilities, ok bool, now time.Time) Outcome {
	if !ok {
		s.window.Clear()
		s.streak.Reset()
		s.observeWindow()
		s.setCurrent(emotion.NoFace, emotion.Decision{Class: -1}, false)
		return Outcome{Label: emotion.NoFace, Decision: emotion.Decision{Class: -1}}
	}

	s.window.Push(probs)
	s.observeWindow()

	avg, _ := s.window.Average()
	d := emotion.Decide(avg, s.cfg.Threshold, s.cfg.Margin)
	label := s.normalizer.Normalize(d)
	if s.metrics != nil {
		s.metrics.ObserveDecision(d.Confident)
	}
	s.setCurrent(label, d, true)

	s.logger.Debug("session: frame decided",
		"label", label,
		"top", d.Top,
		"second", d.Second,
		"window", s.window.Len(),
	)

	out := Outcome{
		Face:      true,
		Label:     label,
		Decision:  d,
		WindowLen: s.window.Len(),
	}

	out.Stable = s.streak.Observe(label)
	if !out.Stable {
		return out
	}

	out.Eligible = s.policy.ShouldSend(label, now)
	if !out.Eligible {
		if last, _, sent := s.policy.Last(); sent && last != label && s.metrics != nil {
			s.metrics.ObserveSuppressed()
		}
		return out
	}

	out.Commands, out.Err = s.dispatch(store.ModeContinuous, s.announcer, s.policy, label, d, NoteContinuous, now)
	out.Sent = out.Err == nil
	return out
}

// Manual announces label the way the interactive controller does: only when
// it differs from the previous manual label, with no minimum interval.
func (s *Session) Manual(label emotion.Label, now time.Time) Outcome {
	out := Outcome{Label: label, Decision: emotion.Decision{Class: -1}}

	out.Eligible = s.manualPolicy.ShouldSend(label, now)
	if !out.Eligible {
		return out
	}

	out.Commands, out.Err = s.dispatch(store.ModeManual, s.manualAnnouncer, s.manualPolicy, label, out.Decision, NoteManual, now)
	out.Sent = out.Err == nil
	return out
}

// dispatch announces label and, only when every command was delivered,
// advances policy. Every attempt is logged, counted and recorded.
func (s *Session) dispatch(mode string, announcer *arc.Announcer, policy *dispatch.Policy, label emotion.Label, d emotion.Decision, note string, now time.Time) ([]string, error) {
	commands, err := announcer.Announce(label, note)
	if err == nil {
		policy.RecordSent(label, now)
		s.logger.Info("session: label dispatched", "mode", mode, "label", label, "style", announcer.Style(), "top", d.Top)
	} else {
		s.logger.Warn("session: dispatch failed", "mode", mode, "label", label, "error", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveDispatch(string(label), err == nil)
	}

	s.updateStatus(func(st *Status) {
		if err == nil {
			st.LastSent = label
			st.LastSentAt = now
			st.Dispatches++
		} else {
			st.Failures++
		}
	})

	ev := Event{
		Type:     "dispatch",
		Mode:     mode,
		Label:    label,
		Top:      d.Top,
		Second:   d.Second,
		Sent:     err == nil,
		Commands: commands,
		At:       now,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.emit(ev)

	if s.dispatchLog != nil {
		rec := &store.Dispatch{
			SessionID: s.sessionID,
			Mode:      mode,
			Label:     string(label),
			Top:       d.Top,
			Second:    d.Second,
			Commands:  commands,
			Success:   err == nil,
			Error:     ev.Error,
			CreatedAt: now,
		}
		if logErr := s.dispatchLog.Create(rec); logErr != nil {
			s.logger.Warn("session: failed to record dispatch", "error", logErr)
		}
	}

	if err == nil && s.publisher != nil {
		if pubErr := s.publisher.Publish(label); pubErr != nil {
			s.logger.Warn("session: mirror publish failed", "label", label, "error", pubErr)
		}
	}

	return commands, err
}

func (s *Session) setCurrent(label emotion.Label, d emotion.Decision, face bool) {
	s.mu.Lock()
	changed := s.status.Label != label
	s.status.Label = label
	s.status.Face = face
	s.status.Top = d.Top
	s.status.Second = d.Second
	s.status.WindowLen = s.window.Len()
	s.status.Frames++
	s.status.UpdatedAt = s.now()
	s.mu.Unlock()

	if changed {
		s.emit(Event{Type: "label", Mode: store.ModeContinuous, Label: label, Top: d.Top, Second: d.Second, At: s.now()})
	}
}

func (s *Session) observeWindow() {
	if s.metrics != nil {
		s.metrics.WindowLen.Store(int64(s.window.Len()))
	}
}
