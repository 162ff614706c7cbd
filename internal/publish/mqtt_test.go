package publish

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/jdemotion/internal/emotion"
)

type fakeToken struct {
	err      error
	complete bool
}

func (t *fakeToken) Wait() bool                     { return t.complete }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.complete }
func (t *fakeToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload string
}

// fakeClient implements the parts of mqtt.Client the publisher uses.
type fakeClient struct {
	mqtt.Client
	open     bool
	token    *fakeToken
	messages []published
}

func (c *fakeClient) IsConnectionOpen() bool { return c.open }

func (c *fakeClient) Connect() mqtt.Token { return c.token }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.messages = append(c.messages, published{topic, qos, retained, payload.(string)})
	return c.token
}

func TestPublish(t *testing.T) {
	client := &fakeClient{open: true, token: &fakeToken{complete: true}}
	p := NewWithClient(Config{Topic: "jd/emotion"}, client)

	if err := p.Publish(emotion.Happy); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(client.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(client.messages))
	}
	msg := client.messages[0]
	if msg.topic != "jd/emotion" || msg.payload != "happy" || msg.qos != 0 || msg.retain {
		t.Errorf("unexpected message %+v", msg)
	}

	if sent, failed := p.Stats(); sent != 1 || failed != 0 {
		t.Errorf("Stats() = %d, %d; want 1, 0", sent, failed)
	}
}

func TestPublish_Errors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
	}{
		{"not connected", &fakeClient{open: false, token: &fakeToken{complete: true}}},
		{"timeout", &fakeClient{open: true, token: &fakeToken{complete: false}}},
		{"broker error", &fakeClient{open: true, token: &fakeToken{complete: true, err: errors.New("refused")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewWithClient(Config{Topic: "jd/emotion"}, tt.client)

			if err := p.Publish(emotion.Sad); err == nil {
				t.Fatal("expected error")
			}
			if _, failed := p.Stats(); failed != 1 {
				t.Errorf("expected one failure, got %d", failed)
			}
		})
	}
}

func TestConnect(t *testing.T) {
	p := NewWithClient(Config{}, &fakeClient{token: &fakeToken{complete: true}})
	if err := p.Connect(); err != nil {
		t.Errorf("Connect failed: %v", err)
	}

	p = NewWithClient(Config{}, &fakeClient{token: &fakeToken{complete: false}})
	if err := p.Connect(); err == nil {
		t.Error("expected timeout error")
	}
}

func TestBrokerURL(t *testing.T) {
	if got := brokerURL("127.0.0.1:1883"); got != "tcp://127.0.0.1:1883" {
		t.Errorf("brokerURL() = %q", got)
	}
	if got := brokerURL("ssl://broker:8883"); got != "ssl://broker:8883" {
		t.Errorf("brokerURL() = %q", got)
	}
}
