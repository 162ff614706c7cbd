package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ayusman/jdemotion/internal/arc"
)

// Validate checks if the configuration is valid. It never modifies cfg.
func Validate(cfg *Config) error {
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}

	// Decision rule
	if cfg.Decision.SmoothWindow < 1 {
		return fmt.Errorf("decision.smooth_window must be >= 1")
	}
	if cfg.Decision.Threshold < 0 || cfg.Decision.Threshold > 1 {
		return fmt.Errorf("decision.threshold must be within [0, 1]")
	}
	if cfg.Decision.Margin < 0 || cfg.Decision.Margin > 1 {
		return fmt.Errorf("decision.margin must be within [0, 1]")
	}
	if _, err := cfg.LabelTable(); err != nil {
		return err
	}

	// Dispatch
	if _, err := arc.ParseStyle(cfg.Dispatch.Style); err != nil {
		return fmt.Errorf("dispatch.style: %w", err)
	}
	if cfg.Dispatch.MinInterval < 0 {
		return fmt.Errorf("dispatch.min_interval must be >= 0")
	}
	if cfg.Dispatch.StableFrames < 1 {
		return fmt.Errorf("dispatch.stable_frames must be >= 1")
	}
	if cfg.Dispatch.ReplyTimeout < 0 {
		return fmt.Errorf("dispatch.reply_timeout must be >= 0")
	}

	// Sampling
	if cfg.Sampling.Window <= 0 {
		return fmt.Errorf("sampling.window must be > 0")
	}
	if _, err := arc.ParseStyle(cfg.Sampling.Style); err != nil {
		return fmt.Errorf("sampling.style: %w", err)
	}

	// Link
	if cfg.Link.Address == "" {
		return fmt.Errorf("link.address is required")
	}
	if cfg.Link.ConnectTimeout < 0 || cfg.Link.WriteTimeout < 0 || cfg.Link.Backoff < 0 {
		return fmt.Errorf("link timeouts must be >= 0")
	}
	if cfg.Link.ReplyMaxBytes < 0 {
		return fmt.Errorf("link.reply_max_bytes must be >= 0")
	}

	// Detector
	if cfg.Detector.MinDetection < 0 || cfg.Detector.MinDetection > 1 {
		return fmt.Errorf("detector.min_detection must be within [0, 1]")
	}
	if cfg.Detector.MinTracking < 0 || cfg.Detector.MinTracking > 1 {
		return fmt.Errorf("detector.min_tracking must be within [0, 1]")
	}

	// MQTT mirror
	if cfg.MQTT.Broker != "" && cfg.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic is required when mqtt.broker is set")
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}

	return nil
}

// ParseLevel converts a log level name into a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level %q must be debug, info, warn or error", s)
}

func normalizeClass(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
