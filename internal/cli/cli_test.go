package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/jdemotion/internal/app"
	"github.com/ayusman/jdemotion/internal/arc"
	"github.com/ayusman/jdemotion/internal/config"
	"github.com/ayusman/jdemotion/internal/emotion"
	"github.com/ayusman/jdemotion/internal/link"
	"github.com/ayusman/jdemotion/internal/store"
)

type recordingSender struct {
	lines []string
}

func (r *recordingSender) Send(msg string) error {
	r.lines = append(r.lines, msg)
	return nil
}

func (r *recordingSender) SendAndAwaitReply(msg string, timeout time.Duration) (link.Reply, error) {
	return link.Reply{}, r.Send(msg)
}

func writeModel(t *testing.T, classes ...string) string {
	t.Helper()

	var rows, bias []string
	for range classes {
		rows = append(rows, "[0.1, 0.2, 0.3]")
		bias = append(bias, "0")
	}
	content := `{"classes": ["` + strings.Join(classes, `", "`) + `"],
		"weights": [` + strings.Join(rows, ", ") + `],
		"bias": [` + strings.Join(bias, ", ") + `]}`

	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}
	return path
}

func TestSessionConfig(t *testing.T) {
	t.Run("copies decision and dispatch settings", func(t *testing.T) {
		c := config.Default()
		c.Decision.SmoothWindow = 5
		c.Dispatch.Style = "pose"
		c.Dispatch.MinInterval = 2 * time.Second
		c.Sampling.Style = ""
		c.Sampling.Gated = true

		sc, err := sessionConfig(c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sc.SmoothWindow != 5 || sc.MinInterval != 2*time.Second || !sc.SamplingGated {
			t.Errorf("unexpected session config %+v", sc)
		}
		if sc.Style != arc.StylePose || sc.SamplingStyle != arc.StylePose {
			t.Errorf("expected pose style for both modes, got %q and %q", sc.Style, sc.SamplingStyle)
		}
	})

	t.Run("sampling style overrides dispatch style", func(t *testing.T) {
		c := config.Default()
		c.Dispatch.Style = "pose"
		c.Sampling.Style = "speech"

		sc, err := sessionConfig(c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sc.SamplingStyle != arc.StyleSpeech {
			t.Errorf("expected speech sampling style, got %q", sc.SamplingStyle)
		}
	})

	t.Run("rejects unknown style", func(t *testing.T) {
		c := config.Default()
		c.Dispatch.Style = "dance"

		if _, err := sessionConfig(c); err == nil {
			t.Error("expected error for unknown style")
		}
	})
}

func TestRunCheck(t *testing.T) {
	t.Run("prints mapping", func(t *testing.T) {
		c := config.Default()
		c.Model.Path = writeModel(t, "ANGRY", "HAPPY", "SAD", "SURPRISED")

		var out bytes.Buffer
		if err := runCheck(&out, c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := out.String()
		for _, want := range []string{"3 features", "ANGRY", "mad", "SURPRISED", "surprised"} {
			if !strings.Contains(got, want) {
				t.Errorf("expected output to contain %q:\n%s", want, got)
			}
		}
	})

	t.Run("unmapped class fails", func(t *testing.T) {
		c := config.Default()
		c.Model.Path = writeModel(t, "HAPPY", "BORED")

		err := runCheck(&bytes.Buffer{}, c)
		if !errors.Is(err, emotion.ErrUnmappedClass) {
			t.Errorf("expected ErrUnmappedClass, got %v", err)
		}
	})

	t.Run("custom table covers extra class", func(t *testing.T) {
		c := config.Default()
		c.Model.Path = writeModel(t, "HAPPY", "BORED")
		c.Decision.Labels = map[string]string{"happy": "happy", "Bored": "neutral"}

		if err := runCheck(&bytes.Buffer{}, c); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing model fails", func(t *testing.T) {
		c := config.Default()
		c.Model.Path = filepath.Join(t.TempDir(), "missing.json")

		if err := runCheck(&bytes.Buffer{}, c); err == nil {
			t.Error("expected error for missing model")
		}
	})
}

func TestRunHistory(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	var out bytes.Buffer
	if err := runHistory(&out, st, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No dispatches") {
		t.Errorf("expected empty message, got %q", out.String())
	}

	session, err := st.Sessions().Start(store.ModeManual)
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	records := []*store.Dispatch{
		{SessionID: session.ID, Mode: store.ModeManual, Label: "happy", Commands: []string{`SayEZB("Happy")`}, Success: true},
		{SessionID: session.ID, Label: "sad", Success: false, Error: "connection reset"},
	}
	for _, d := range records {
		if err := st.Dispatches().Create(d); err != nil {
			t.Fatalf("failed to create dispatch: %v", err)
		}
	}

	out.Reset()
	if err := runHistory(&out, st, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	for _, want := range []string{"manual", "happy", `SayEZB("Happy")`, "failed: connection reset"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q:\n%s", want, got)
		}
	}
}

func TestSayLoop(t *testing.T) {
	sender := &recordingSender{}
	cfg := app.DefaultConfig()
	cfg.ReplyTimeout = 0
	session := app.New(cfg, nil, nil, nil, sender)

	in := strings.NewReader("happy\nHAPPY\nbogus\n\nsad\nquit\nmad\n")
	var out bytes.Buffer

	if err := sayLoop(in, &out, session, time.Now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := out.String()
	for _, want := range []string{"sent happy", "happy unchanged", `unknown label "bogus"`, "sent sad"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "sent mad") {
		t.Error("expected input after quit to be ignored")
	}

	want := arc.StyleSpeech.Script(emotion.Happy, app.NoteManual)
	want = append(want, arc.StyleSpeech.Script(emotion.Sad, app.NoteManual)...)
	if strings.Join(sender.lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("unexpected commands:\n%s", strings.Join(sender.lines, "\n"))
	}
}

func TestReadTriggers(t *testing.T) {
	fired := 0
	stopped := false

	readTriggers(t.Context(), strings.NewReader("\n\nexit\n\n"),
		func() bool { fired++; return true },
		func() { stopped = true })

	if fired != 2 {
		t.Errorf("expected 2 triggers, got %d", fired)
	}
	if !stopped {
		t.Error("expected stop on exit")
	}

	stopped = false
	readTriggers(t.Context(), strings.NewReader("\n"), func() bool { return false }, func() { stopped = true })
	if !stopped {
		t.Error("expected stop at end of input")
	}
}

func TestSampleBar(t *testing.T) {
	b := &sampleBar{out: &bytes.Buffer{}}

	b.update(time.Second, 3*time.Second)
	first := b.bar
	if first == nil {
		t.Fatal("expected a bar")
	}

	b.update(3*time.Second, 3*time.Second)
	if b.bar != nil {
		t.Error("expected bar to finish at the end of the window")
	}

	b.update(500*time.Millisecond, 3*time.Second)
	b.update(100*time.Millisecond, 3*time.Second)
	if b.bar == nil || b.last != 100*time.Millisecond {
		t.Error("expected a fresh bar when elapsed goes backwards")
	}
}
