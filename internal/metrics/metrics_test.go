package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/jdemotion/internal/link"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("failed to read metrics: %v", err)
	}
	return string(body)
}

func TestMetrics_Exposition(t *testing.T) {
	m := New()

	m.ObserveFrame(10*time.Millisecond, true)
	m.ObserveFrame(5*time.Millisecond, false)
	m.ObserveDecision(true)
	m.ObserveDecision(false)
	m.ObserveDecision(false)
	m.ObserveDispatch("happy", true)
	m.ObserveDispatch("sad", false)
	m.ObserveSuppressed()
	m.WindowLen.Store(7)

	body := scrape(t, m)

	want := []string{
		"jdemotion_frames_read_total 2",
		"jdemotion_frames_no_face_total 1",
		`jdemotion_decisions_total{outcome="confident"} 1`,
		`jdemotion_decisions_total{outcome="uncertain"} 2`,
		`jdemotion_dispatches_total{label="happy",result="ok"} 1`,
		`jdemotion_dispatches_total{label="sad",result="error"} 1`,
		"jdemotion_dispatches_suppressed_total 1",
		"jdemotion_window_length 7",
		"jdemotion_frame_seconds_count 2",
	}
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("metrics output missing %q", w)
		}
	}
}

func TestMetrics_WatchLink(t *testing.T) {
	m := New()

	stats := link.Stats{DialAttempts: 4, Connects: 2, Reconnects: 1, Sends: 9, Failures: 1, Replies: 3}
	m.WatchLink(func() link.Stats { return stats })

	body := scrape(t, m)
	for _, w := range []string{
		"jdemotion_link_dial_attempts_total 4",
		"jdemotion_link_connects_total 2",
		"jdemotion_link_reconnects_total 1",
		"jdemotion_link_sends_total 9",
		"jdemotion_link_failures_total 1",
		"jdemotion_link_replies_total 3",
	} {
		if !strings.Contains(body, w) {
			t.Errorf("metrics output missing %q", w)
		}
	}

	// Values are read at scrape time.
	stats.Sends = 10
	if body := scrape(t, m); !strings.Contains(body, "jdemotion_link_sends_total 10") {
		t.Error("expected updated send count on second scrape")
	}
}
