package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/jdemotion/internal/emotion"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jdemotion.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"smooth window", cfg.Decision.SmoothWindow, 15},
		{"threshold", cfg.Decision.Threshold, 0.55},
		{"margin", cfg.Decision.Margin, 0.15},
		{"min interval", cfg.Dispatch.MinInterval, 750 * time.Millisecond},
		{"sampling window", cfg.Sampling.Window, 3 * time.Second},
		{"sampling gated", cfg.Sampling.Gated, false},
		{"address", cfg.Link.Address, "127.0.0.1:5000"},
		{"connect timeout", cfg.Link.ConnectTimeout, 3 * time.Second},
		{"backoff", cfg.Link.Backoff, 1500 * time.Millisecond},
		{"no delay", cfg.Link.NoDelay, true},
		{"reply max", cfg.Link.ReplyMaxBytes, 4096},
		{"reply timeout", cfg.Dispatch.ReplyTimeout, 250 * time.Millisecond},
		{"camera", cfg.Camera.Source, "http://localhost:8094/Default.m3u8"},
		{"mqtt topic", cfg.MQTT.Topic, "jd/emotion"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
camera:
  source: "0"
decision:
  smooth_window: 10
  threshold: 0.6
  labels:
    ANGRY: mad
    Joy: happy
dispatch:
  style: pose
  min_interval: 1s
  stable_frames: 5
sampling:
  window: 2500ms
  gated: true
link:
  address: robot.local:5000
mqtt:
  broker: tcp://127.0.0.1:1883
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Decision.SmoothWindow != 10 || cfg.Decision.Threshold != 0.6 {
		t.Errorf("decision not loaded: %+v", cfg.Decision)
	}
	if cfg.Decision.Margin != 0.15 {
		t.Errorf("unset margin should keep default, got %f", cfg.Decision.Margin)
	}
	if cfg.Dispatch.MinInterval != time.Second || cfg.Dispatch.StableFrames != 5 {
		t.Errorf("dispatch not loaded: %+v", cfg.Dispatch)
	}
	if cfg.Sampling.Window != 2500*time.Millisecond || !cfg.Sampling.Gated {
		t.Errorf("sampling not loaded: %+v", cfg.Sampling)
	}
	if cfg.Sampling.Style != "speech" {
		t.Errorf("sampling style should keep default, got %q", cfg.Sampling.Style)
	}
	if cfg.Link.Backoff != 1500*time.Millisecond {
		t.Errorf("unset backoff should keep default, got %v", cfg.Link.Backoff)
	}

	table, err := cfg.LabelTable()
	if err != nil {
		t.Fatalf("LabelTable failed: %v", err)
	}
	if l, ok := table.Lookup("joy"); !ok || l != emotion.Happy {
		t.Errorf("expected joy -> happy, got %q, %v", l, ok)
	}
	if l, ok := table.Lookup("angry"); !ok || l != emotion.Mad {
		t.Errorf("expected angry -> mad, got %q, %v", l, ok)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"window", "decision:\n  smooth_window: 0\n", "smooth_window"},
		{"threshold", "decision:\n  threshold: 1.5\n", "threshold"},
		{"margin", "decision:\n  margin: -0.1\n", "margin"},
		{"unknown label", "decision:\n  labels:\n    angry: furious\n", "decision.labels"},
		{"style", "dispatch:\n  style: dance\n", "dispatch.style"},
		{"interval", "dispatch:\n  min_interval: -1s\n", "min_interval"},
		{"stable frames", "dispatch:\n  stable_frames: 0\n", "stable_frames"},
		{"sampling window", "sampling:\n  window: 0s\n", "sampling.window"},
		{"address", "link:\n  address: \"\"\n", "link.address"},
		{"log level", "log_level: loud\n", "log_level"},
		{"qos", "mqtt:\n  qos: 3\n", "mqtt.qos"},
		{"syntax", "decision: [\n", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FillsBlankValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
dispatch:
  style: pose
sampling:
  style: ""
mqtt:
  broker: tcp://127.0.0.1:1883
  topic: ""
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sampling.Style != "pose" {
		t.Errorf("blank sampling style should follow dispatch style, got %q", cfg.Sampling.Style)
	}
	if cfg.MQTT.Topic != "jd/emotion" {
		t.Errorf("blank mqtt topic should take the default, got %q", cfg.MQTT.Topic)
	}
}

func TestValidate_DoesNotModify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"stable frames", func(c *Config) { c.Dispatch.StableFrames = 0 }, "stable_frames"},
		{"sampling style", func(c *Config) { c.Sampling.Style = "" }, "sampling.style"},
		{"mqtt topic", func(c *Config) { c.MQTT.Broker = "tcp://127.0.0.1:1883"; c.MQTT.Topic = "" }, "mqtt.topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			before := *cfg

			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
			if cfg.Dispatch.StableFrames != before.Dispatch.StableFrames ||
				cfg.Sampling.Style != before.Sampling.Style ||
				cfg.MQTT.Topic != before.MQTT.Topic {
				t.Errorf("Validate modified the config: before %+v, after %+v", before, *cfg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLabelTable_DefaultWhenEmpty(t *testing.T) {
	table, err := Default().LabelTable()
	if err != nil {
		t.Fatalf("LabelTable failed: %v", err)
	}
	if len(table) != len(emotion.DefaultTable()) {
		t.Errorf("expected default table, got %v", table)
	}
}

func TestSettingsConversion(t *testing.T) {
	cfg := Default()
	cfg.Link.Address = "10.0.0.2:5000"
	cfg.Detector.Script = "/opt/face_mesh_service.py"

	if lc := cfg.LinkSettings(); lc.Address != "10.0.0.2:5000" || lc.ReplyMaxBytes != 4096 {
		t.Errorf("unexpected link settings %+v", lc)
	}
	if dc := cfg.DetectorSettings(); dc.Script != "/opt/face_mesh_service.py" || dc.MinConfidence != 0.6 {
		t.Errorf("unexpected detector settings %+v", dc)
	}
}
