package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/busmap-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "busmapd-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// fakeMessage implements paho's Message interface.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"RecordState", topics.RecordState("temp1"), "busmap/state/temp1"},
		{"RecordCommand", topics.RecordCommand("relay"), "busmap/command/relay"},
		{"RecordAck", topics.RecordAck("relay"), "busmap/ack/relay"},
		{"SystemStatus", topics.SystemStatus(), "busmap/system/status"},
		{"AllRecordStates", topics.AllRecordStates(), "busmap/state/+"},
		{"AllRecordCommands", topics.AllRecordCommands(), "busmap/command/+"},
		{"AllRecordAcks", topics.AllRecordAcks(), "busmap/ack/+"},
		{"AllTopics", topics.AllTopics(), "busmap/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "bus"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "busmapd-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bus" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.WillEnabled || opts.WillTopic != "busmap/system/status" || !opts.WillRetained {
		t.Errorf("will = %v %q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	if !strings.Contains(string(opts.WillPayload), "unexpected_disconnect") {
		t.Errorf("WillPayload = %s", opts.WillPayload)
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" || opts.TLSConfig == nil {
		t.Errorf("TLS options: scheme %q, config %v", opts.Servers[0].Scheme, opts.TLSConfig)
	}
}

func TestStatusPayload(t *testing.T) {
	var msg statusMessage
	if err := json.Unmarshal(statusPayload("busmapd", "online", ""), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Status != "online" || msg.ClientID != "busmapd" || msg.Reason != "" || msg.Timestamp == "" {
		t.Errorf("status = %+v", msg)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{"publish empty topic", func() error { return c.Publish("", nil, 1, false) }, ErrInvalidRequest},
		{"publish bad qos", func() error { return c.Publish("busmap/x", nil, 3, false) }, ErrInvalidRequest},
		{"publish too large", func() error {
			return c.Publish("busmap/x", make([]byte, maxPayloadSize+1), 1, false)
		}, ErrInvalidRequest},
		{"publish", func() error { return c.PublishRetained("busmap/x", []byte("{}")) }, ErrNotConnected},
		{"subscribe empty topic", func() error { return c.Subscribe("", 1, noop) }, ErrInvalidRequest},
		{"subscribe bad qos", func() error { return c.Subscribe("busmap/x", 5, noop) }, ErrInvalidRequest},
		{"subscribe nil handler", func() error { return c.Subscribe("busmap/x", 1, nil) }, ErrInvalidRequest},
		{"subscribe", func() error { return c.Subscribe("busmap/x", 1, noop) }, ErrNotConnected},
		{"unsubscribe empty topic", func() error { return c.Unsubscribe("") }, ErrInvalidRequest},
		{"unsubscribe", func() error { return c.Unsubscribe("busmap/x") }, ErrNotConnected},
		{"health", func() error { return c.HealthCheck(context.Background()) }, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if c.HasSubscription("busmap/x") {
		t.Error("failed subscribe left a tracked subscription")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client = %v", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	c := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestWrapHandler(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{}
	c.SetLogger(logger)

	var got string
	c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})(nil, fakeMessage{topic: "busmap/command/a", payload: []byte("1")})
	if got != "busmap/command/a=1" {
		t.Errorf("handler saw %q", got)
	}

	c.wrapHandler(func(string, []byte) error {
		return errors.New("bad payload")
	})(nil, fakeMessage{topic: "busmap/command/a"})

	c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, fakeMessage{topic: "busmap/command/a"})

	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one handler error", logger.warns)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one recovered panic", logger.errors)
	}
}
