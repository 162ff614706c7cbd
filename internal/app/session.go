// Package app runs the emotion pipeline: frames in, labels out to the robot controller.
package app

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/jdemotion/internal/arc"
	"github.com/ayusman/jdemotion/internal/capture"
	"github.com/ayusman/jdemotion/internal/dispatch"
	"github.com/ayusman/jdemotion/internal/emotion"
	"github.com/ayusman/jdemotion/internal/metrics"
	"github.com/ayusman/jdemotion/internal/store"
)

// Console notes printed by the controller in speech style.
const (
	NoteContinuous = "live"
	NoteSample     = "window result"
	NoteManual     = "new"
)

// DefaultReadRetryDelay is the pause after a failed camera read.
const DefaultReadRetryDelay = 50 * time.Millisecond

// Config holds the pipeline parameters.
type Config struct {
	SmoothWindow int
	Threshold    float64
	Margin       float64

	// Continuous mode
	Style        arc.Style
	MinInterval  time.Duration
	StableFrames int
	ReplyTimeout time.Duration

	// One-shot mode
	SamplingWindow time.Duration
	SamplingGated  bool
	SamplingStyle  arc.Style

	// DrainIdle keeps reading frames between triggers so a buffered stream
	// stays current.
	DrainIdle bool

	ReadRetryDelay time.Duration
}

// DefaultConfig returns the defaults of every tunable.
func DefaultConfig() Config {
	return Config{
		SmoothWindow:   emotion.DefaultWindowSize,
		Threshold:      emotion.DefaultThreshold,
		Margin:         emotion.DefaultMargin,
		Style:          arc.StyleSpeech,
		MinInterval:    dispatch.DefaultMinInterval,
		StableFrames:   1,
		ReplyTimeout:   250 * time.Millisecond,
		SamplingWindow: 3 * time.Second,
		SamplingStyle:  arc.StyleSpeech,
		DrainIdle:      true,
		ReadRetryDelay: DefaultReadRetryDelay,
	}
}

// DispatchLog persists dispatch attempts. *store.DispatchRepository implements it.
type DispatchLog interface {
	Create(d *store.Dispatch) error
}

// Publisher mirrors delivered labels elsewhere.
type Publisher interface {
	Publish(label emotion.Label) error
}

// Event is sent to observers when the current label changes or a dispatch
// is attempted.
type Event struct {
	Type     string        `json:"type"` // "label" or "dispatch"
	Mode     string        `json:"mode"`
	Label    emotion.Label `json:"label"`
	Top      float64       `json:"top"`
	Second   float64       `json:"second"`
	Sent     bool          `json:"sent,omitempty"`
	Commands []string      `json:"commands,omitempty"`
	Error    string        `json:"error,omitempty"`
	At       time.Time     `json:"at"`
}

// Status is a snapshot of the session for observers.
type Status struct {
	Mode       string        `json:"mode"`
	Running    bool          `json:"running"`
	Paused     bool          `json:"paused"`
	Sampling   bool          `json:"sampling"`
	Connected  bool          `json:"connected"`
	Face       bool          `json:"face"`
	WindowLen  int           `json:"window_len"`
	Label      emotion.Label `json:"label"`
	Top        float64       `json:"top"`
	Second     float64       `json:"second"`
	LastSent   emotion.Label `json:"last_sent,omitempty"`
	LastSentAt time.Time     `json:"last_sent_at,omitempty"`
	Frames     uint64        `json:"frames"`
	Dispatches uint64        `json:"dispatches"`
	Failures   uint64        `json:"failures"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Option customizes a Session.
type Option func(*Session)

// WithDispatchLog records every dispatch attempt under sessionID.
func WithDispatchLog(log DispatchLog, sessionID string) Option {
	return func(s *Session) {
		s.dispatchLog = log
		s.sessionID = sessionID
	}
}

// WithPublisher mirrors delivered labels.
func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

// WithMetrics reports counters to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithEvents delivers events to ch without blocking. Events are dropped
// when ch is full.
func WithEvents(ch chan<- Event) Option {
	return func(s *Session) { s.events = ch }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithSleep replaces the wait used after failed reads.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Session) { s.sleep = sleep }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithSampleProgress is called after every frame of a triggered sample.
func WithSampleProgress(fn func(elapsed, total time.Duration)) Option {
	return func(s *Session) { s.sampleProgress = fn }
}

// Session owns the decision state of one pipeline run. Window, policies and
// the link are used only from the goroutine running the loop; Status and
// SetPaused are safe from any goroutine.
type Session struct {
	cfg        Config
	camera     capture.Camera
	estimator  Estimator
	normalizer *emotion.Normalizer
	sender     arc.Sender

	announcer       *arc.Announcer
	sampleAnnouncer *arc.Announcer
	manualAnnouncer *arc.Announcer

	window       *emotion.Window
	streak       *dispatch.Streak
	policy       *dispatch.Policy
	samplePolicy *dispatch.Policy
	manualPolicy *dispatch.Policy

	dispatchLog    DispatchLog
	sessionID      string
	publisher      Publisher
	metrics        *metrics.Metrics
	events         chan<- Event
	sampleProgress func(elapsed, total time.Duration)

	now    func() time.Time
	sleep  func(time.Duration)
	logger *slog.Logger

	paused atomic.Bool

	mu     sync.RWMutex
	status Status
}

// New creates a Session. camera and estimator may be nil for manual use.
func New(cfg Config, camera capture.Camera, estimator Estimator, normalizer *emotion.Normalizer, sender arc.Sender, opts ...Option) *Session {
	def := DefaultConfig()
	if cfg.SmoothWindow < 1 {
		cfg.SmoothWindow = def.SmoothWindow
	}
	if cfg.Style == "" {
		cfg.Style = def.Style
	}
	if cfg.SamplingStyle == "" {
		cfg.SamplingStyle = cfg.Style
	}
	if cfg.SamplingWindow <= 0 {
		cfg.SamplingWindow = def.SamplingWindow
	}
	if cfg.ReadRetryDelay <= 0 {
		cfg.ReadRetryDelay = def.ReadRetryDelay
	}

	s := &Session{
		cfg:             cfg,
		camera:          camera,
		estimator:       estimator,
		normalizer:      normalizer,
		sender:          sender,
		announcer:       arc.NewAnnouncer(sender, cfg.Style, cfg.ReplyTimeout),
		sampleAnnouncer: arc.NewAnnouncer(sender, cfg.SamplingStyle, cfg.ReplyTimeout),
		manualAnnouncer: arc.NewAnnouncer(sender, arc.StyleSpeech, cfg.ReplyTimeout),
		window:          emotion.NewWindow(cfg.SmoothWindow),
		streak:          dispatch.NewStreak(cfg.StableFrames),
		policy:          dispatch.NewPolicy(cfg.MinInterval),
		manualPolicy:    dispatch.NewPolicy(0),
		now:             time.Now,
		logger:          slog.Default(),
	}
	if cfg.SamplingGated {
		s.samplePolicy = dispatch.NewPolicy(cfg.MinInterval)
	} else {
		s.samplePolicy = dispatch.NewUngatedPolicy()
	}
	s.sleep = time.Sleep

	for _, opt := range opts {
		opt(s)
	}

	s.status.Label = emotion.NoFace
	return s
}

// Config returns the effective configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// SetPaused suspends continuous processing. The window is cleared on resume.
func (s *Session) SetPaused(paused bool) {
	s.paused.Store(paused)
	s.updateStatus(func(st *Status) { st.Paused = paused })
}

// Paused reports whether processing is suspended.
func (s *Session) Paused() bool {
	return s.paused.Load()
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()

	if c, ok := s.sender.(interface{ Connected() bool }); ok {
		st.Connected = c.Connected()
	}
	return st
}

func (s *Session) updateStatus(fn func(st *Status)) {
	s.mu.Lock()
	fn(&s.status)
	s.status.UpdatedAt = s.now()
	s.mu.Unlock()
}

func (s *Session) emit(ev Event) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}
