package arc

import (
	"fmt"
	"time"

	"github.com/ayusman/jdemotion/internal/emotion"
	"github.com/ayusman/jdemotion/internal/link"
)

// Style selects which commands announce a label.
type Style string

const (
	// StyleSpeech sets $EmotionLabel, prints a note and speaks the label.
	StyleSpeech Style = "speech"
	// StylePose plays the label's Auto Position frame and says it; neutral
	// stops the current frame.
	StylePose Style = "pose"
)

// ParseStyle validates a style name.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleSpeech, StylePose:
		return Style(s), nil
	default:
		return "", fmt.Errorf("unknown announce style %q", s)
	}
}

// Script returns the command lines that announce label. note tags the
// console print in speech style, e.g. "new" or "window result".
func (s Style) Script(label emotion.Label, note string) []string {
	switch s {
	case StylePose:
		if label == emotion.Neutral {
			return []string{AutoPositionStop()}
		}
		return []string{
			AutoPositionFrame(label.Title()),
			Say(label.Title()),
		}
	default:
		return []string{
			SetVariable(LabelVariable, string(label)),
			Print(fmt.Sprintf("Emotion (%s): %s", note, label)),
			SayEZB(label.Title()),
		}
	}
}

// Sender delivers command lines. *link.Link implements it.
type Sender interface {
	Send(msg string) error
	SendAndAwaitReply(msg string, timeout time.Duration) (link.Reply, error)
}

// Announcer sends a style's script over a Sender.
type Announcer struct {
	sender       Sender
	style        Style
	awaitReply   bool
	replyTimeout time.Duration
}

// NewAnnouncer creates an Announcer. A positive replyTimeout makes every
// command wait briefly for the controller's answer.
func NewAnnouncer(sender Sender, style Style, replyTimeout time.Duration) *Announcer {
	return &Announcer{
		sender:       sender,
		style:        style,
		awaitReply:   replyTimeout > 0,
		replyTimeout: replyTimeout,
	}
}

// Style returns the announce style.
func (a *Announcer) Style() Style {
	return a.style
}

// Announce sends every command for label and returns the lines that were
// delivered. It stops at the first failed command.
func (a *Announcer) Announce(label emotion.Label, note string) ([]string, error) {
	script := a.style.Script(label, note)

	sent := make([]string, 0, len(script))
	for _, cmd := range script {
		if err := a.send(cmd); err != nil {
			return sent, fmt.Errorf("announce %s: %w", label, err)
		}
		sent = append(sent, cmd)
	}
	return sent, nil
}

func (a *Announcer) send(cmd string) error {
	if !a.awaitReply {
		return a.sender.Send(cmd)
	}
	_, err := a.sender.SendAndAwaitReply(cmd, a.replyTimeout)
	return err
}
