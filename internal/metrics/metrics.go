// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/jdemotion/internal/link"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame counters
	FramesRead     atomic.Uint64
	FramesNoFace   atomic.Uint64
	ReadErrors     atomic.Uint64
	EstimateErrors atomic.Uint64

	// Window fill of the continuous loop
	WindowLen atomic.Int64

	// Prometheus collectors
	registry     *prometheus.Registry
	decisions    *prometheus.CounterVec
	dispatches   *prometheus.CounterVec
	suppressed   prometheus.Counter
	frameLatency prometheus.Histogram
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jdemotion_decisions_total",
			Help: "Per-frame decisions by outcome",
		}, []string{"outcome"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jdemotion_dispatches_total",
			Help: "Label deliveries to the controller by label and result",
		}, []string{"label", "result"}),
		suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jdemotion_dispatches_suppressed_total",
			Help: "Labels withheld by the change and interval gate",
		}),
		frameLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jdemotion_frame_seconds",
			Help:    "Time to estimate and decide one frame",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}

	m.registry.MustRegister(m.decisions, m.dispatches, m.suppressed, m.frameLatency)
	m.registerFrameMetrics()

	return m
}

func (m *Metrics) registerFrameMetrics() {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "jdemotion_frames_read_total",
			Help: "Total frames read from the camera",
		},
		func() float64 { return float64(m.FramesRead.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "jdemotion_frames_no_face_total",
			Help: "Frames without a usable face",
		},
		func() float64 { return float64(m.FramesNoFace.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "jdemotion_read_errors_total",
			Help: "Camera read errors",
		},
		func() float64 { return float64(m.ReadErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "jdemotion_estimate_errors_total",
			Help: "Detector or classifier errors",
		},
		func() float64 { return float64(m.EstimateErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "jdemotion_window_length",
			Help: "Probability vectors currently in the smoothing window",
		},
		func() float64 { return float64(m.WindowLen.Load()) },
	))
}

// WatchLink exports the connection counters returned by stats.
func (m *Metrics) WatchLink(stats func() link.Stats) {
	counters := []struct {
		name string
		help string
		get  func(link.Stats) uint64
	}{
		{"jdemotion_link_dial_attempts_total", "Connection attempts to the controller", func(s link.Stats) uint64 { return s.DialAttempts }},
		{"jdemotion_link_connects_total", "Successful connections to the controller", func(s link.Stats) uint64 { return s.Connects }},
		{"jdemotion_link_reconnects_total", "Reconnects triggered by a failed write", func(s link.Stats) uint64 { return s.Reconnects }},
		{"jdemotion_link_sends_total", "Lines written to the controller", func(s link.Stats) uint64 { return s.Sends }},
		{"jdemotion_link_failures_total", "Sends that failed after the retry", func(s link.Stats) uint64 { return s.Failures }},
		{"jdemotion_link_replies_total", "Replies read from the controller", func(s link.Stats) uint64 { return s.Replies }},
	}

	for _, c := range counters {
		get := c.get
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(get(stats())) },
		))
	}
}

// ObserveFrame records one processed frame.
func (m *Metrics) ObserveFrame(elapsed time.Duration, face bool) {
	m.FramesRead.Add(1)
	if !face {
		m.FramesNoFace.Add(1)
	}
	m.frameLatency.Observe(elapsed.Seconds())
}

// ObserveDecision counts a decision as confident or uncertain.
func (m *Metrics) ObserveDecision(confident bool) {
	outcome := "uncertain"
	if confident {
		outcome = "confident"
	}
	m.decisions.WithLabelValues(outcome).Inc()
}

// ObserveDispatch counts a delivery attempt.
func (m *Metrics) ObserveDispatch(label string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.dispatches.WithLabelValues(label, result).Inc()
}

// ObserveSuppressed counts a label the dispatch gate withheld.
func (m *Metrics) ObserveSuppressed() {
	m.suppressed.Inc()
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
