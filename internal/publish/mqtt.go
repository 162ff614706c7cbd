// Package publish mirrors dispatched labels to an MQTT topic.
package publish

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/jdemotion/internal/emotion"
)

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

// Config contains MQTT broker settings
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Retain   bool
}

// MQTTPublisher publishes each dispatched label as a plain-text payload.
type MQTTPublisher struct {
	cfg    Config
	client mqtt.Client

	mu        sync.Mutex
	published uint64
	errors    uint64
}

// NewMQTTPublisher creates a publisher; call Connect before Publish.
func NewMQTTPublisher(cfg Config) *MQTTPublisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		slog.Info("mqtt: connection established", "broker", cfg.Broker, "topic", cfg.Topic)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		slog.Warn("mqtt: connection lost, will auto-reconnect", "error", err, "broker", cfg.Broker)
	}

	return NewWithClient(cfg, mqtt.NewClient(opts))
}

// NewWithClient wraps an existing client.
func NewWithClient(cfg Config, client mqtt.Client) *MQTTPublisher {
	return &MQTTPublisher{cfg: cfg, client: client}
}

// Connect establishes the broker connection. With connect retry enabled the
// client keeps trying in the background after a timeout.
func (p *MQTTPublisher) Connect() error {
	slog.Info("mqtt: connecting to broker", "broker", p.cfg.Broker)

	token := p.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// Publish sends label to the configured topic.
func (p *MQTTPublisher) Publish(label emotion.Label) error {
	if !p.client.IsConnectionOpen() {
		p.countError()
		return ErrNotConnected
	}

	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, p.cfg.Retain, string(label))
	if !token.WaitTimeout(2 * time.Second) {
		p.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()

	slog.Debug("mqtt: label published", "topic", p.cfg.Topic, "label", label)
	return nil
}

// Stats returns the number of published labels and failed publishes.
func (p *MQTTPublisher) Stats() (published, failed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.errors
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

func (p *MQTTPublisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
