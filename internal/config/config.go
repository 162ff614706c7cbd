// Package config loads jdemotion settings from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/jdemotion/internal/capture"
	"github.com/ayusman/jdemotion/internal/detector"
	"github.com/ayusman/jdemotion/internal/dispatch"
	"github.com/ayusman/jdemotion/internal/emotion"
	"github.com/ayusman/jdemotion/internal/link"
)

// DataDirName is the per-user directory holding the database and scripts.
const DataDirName = ".jdemotion"

// Config represents the complete jdemotion configuration
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Model    ModelConfig    `yaml:"model"`
	Decision DecisionConfig `yaml:"decision"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Sampling SamplingConfig `yaml:"sampling"`
	Link     LinkConfig     `yaml:"link"`
	Store    StoreConfig    `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// CameraConfig selects the frame source
type CameraConfig struct {
	Source string `yaml:"source"` // device index or stream URL
}

// DetectorConfig configures the face mesh service
type DetectorConfig struct {
	Script          string  `yaml:"script"`
	Python          string  `yaml:"python"`
	RefineLandmarks bool    `yaml:"refine_landmarks"`
	MinDetection    float64 `yaml:"min_detection"`
	MinTracking     float64 `yaml:"min_tracking"`
}

// ModelConfig locates the classifier
type ModelConfig struct {
	Path       string `yaml:"path"`
	ClassNames string `yaml:"class_names"` // optional override, one name per line
}

// DecisionConfig holds the smoothing and decision rule parameters
type DecisionConfig struct {
	SmoothWindow int               `yaml:"smooth_window"`
	Threshold    float64           `yaml:"threshold"`
	Margin       float64           `yaml:"margin"`
	Labels       map[string]string `yaml:"labels"` // class name -> label; empty uses the built-in table
}

// DispatchConfig controls continuous-mode delivery
type DispatchConfig struct {
	Style        string        `yaml:"style"` // speech, pose
	MinInterval  time.Duration `yaml:"min_interval"`
	StableFrames int           `yaml:"stable_frames"`
	ReplyTimeout time.Duration `yaml:"reply_timeout"` // 0 sends without reading replies
}

// SamplingConfig controls one-shot trigger mode
type SamplingConfig struct {
	Window time.Duration `yaml:"window"`
	Gated  bool          `yaml:"gated"`
	Style  string        `yaml:"style"`
}

// LinkConfig contains the robot controller connection settings
type LinkConfig struct {
	Address        string        `yaml:"address"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	Backoff        time.Duration `yaml:"backoff"`
	NoDelay        bool          `yaml:"no_delay"`
	ReplyMaxBytes  int           `yaml:"reply_max_bytes"`
}

// StoreConfig locates the dispatch audit log
type StoreConfig struct {
	Path string `yaml:"path"` // empty disables the audit log
}

// ServerConfig configures the status server
type ServerConfig struct {
	Addr string `yaml:"addr"` // empty disables the server
}

// MQTTConfig contains the optional label mirror settings
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables publishing
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	lc := link.DefaultConfig()
	dc := detector.DefaultConfig()

	return &Config{
		LogLevel: "info",
		Camera:   CameraConfig{Source: capture.DefaultSource},
		Detector: DetectorConfig{
			RefineLandmarks: dc.RefineLandmarks,
			MinDetection:    dc.MinConfidence,
			MinTracking:     dc.MinTrackingConf,
		},
		Model: ModelConfig{Path: "model.json"},
		Decision: DecisionConfig{
			SmoothWindow: emotion.DefaultWindowSize,
			Threshold:    emotion.DefaultThreshold,
			Margin:       emotion.DefaultMargin,
		},
		Dispatch: DispatchConfig{
			Style:        "speech",
			MinInterval:  dispatch.DefaultMinInterval,
			StableFrames: 1,
			ReplyTimeout: 250 * time.Millisecond,
		},
		Sampling: SamplingConfig{
			Window: 3 * time.Second,
			Style:  "speech",
		},
		Link: LinkConfig{
			Address:        lc.Address,
			ConnectTimeout: lc.ConnectTimeout,
			WriteTimeout:   lc.WriteTimeout,
			Backoff:        lc.Backoff,
			NoDelay:        lc.NoDelay,
			ReplyMaxBytes:  lc.ReplyMaxBytes,
		},
		Store:  StoreConfig{Path: DefaultStorePath()},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		MQTT: MQTTConfig{
			Topic:    "jd/emotion",
			ClientID: "jdemotion",
		},
	}
}

// DefaultStorePath returns ~/.jdemotion/jdemotion.db, or a relative path
// when the home directory is unknown.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "jdemotion.db"
	}
	return filepath.Join(home, DataDirName, "jdemotion.db")
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fillBlanks(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// fillBlanks restores values a file cleared explicitly. An empty sampling
// style follows the dispatch style; an empty MQTT topic takes the default.
func fillBlanks(cfg *Config) {
	if cfg.Sampling.Style == "" {
		cfg.Sampling.Style = cfg.Dispatch.Style
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = Default().MQTT.Topic
	}
}

// LinkSettings converts the link section for link.New.
func (c *Config) LinkSettings() link.Config {
	return link.Config{
		Address:        c.Link.Address,
		ConnectTimeout: c.Link.ConnectTimeout,
		WriteTimeout:   c.Link.WriteTimeout,
		Backoff:        c.Link.Backoff,
		NoDelay:        c.Link.NoDelay,
		ReplyMaxBytes:  c.Link.ReplyMaxBytes,
	}
}

// DetectorSettings converts the detector section for the face mesh service.
func (c *Config) DetectorSettings() detector.Config {
	return detector.Config{
		Script:          c.Detector.Script,
		Python:          c.Detector.Python,
		RefineLandmarks: c.Detector.RefineLandmarks,
		MinConfidence:   c.Detector.MinDetection,
		MinTrackingConf: c.Detector.MinTracking,
	}
}

// LabelTable returns the class-to-label table. An empty labels section
// selects emotion.DefaultTable.
func (c *Config) LabelTable() (emotion.Table, error) {
	if len(c.Decision.Labels) == 0 {
		return emotion.DefaultTable(), nil
	}

	table := make(emotion.Table, len(c.Decision.Labels))
	for class, target := range c.Decision.Labels {
		label, err := emotion.ParseLabel(target)
		if err != nil {
			return nil, fmt.Errorf("decision.labels[%s]: %w", class, err)
		}
		table[normalizeClass(class)] = label
	}
	return table, nil
}
