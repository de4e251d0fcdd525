package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/busmap-core/internal/devbus"
	"github.com/nerrad567/busmap-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/busmap-core/internal/mmio"
	"github.com/nerrad567/busmap-core/internal/record"
	"github.com/nerrad567/busmap-core/internal/scan"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// fakeMQTT records publishes and captures the subscribed handler.
type fakeMQTT struct {
	mu           sync.Mutex
	published    []published
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	subErr       error
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic, payload, qos, retained})
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if f.subErr != nil {
		return f.subErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeMQTT) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topic)
	delete(f.handlers, topic)
	return nil
}

func (f *fakeMQTT) deliver(t *testing.T, topic string, payload string) {
	t.Helper()
	f.mu.Lock()
	h := f.handlers[mqtt.Topics{}.AllRecordCommands()]
	f.mu.Unlock()
	if h == nil {
		t.Fatal("no command handler subscribed")
	}
	if err := h(topic, []byte(payload)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
}

func (f *fakeMQTT) on(topic string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, p := range f.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// newRecords builds a bound database with one output and one input record.
func newRecords(t *testing.T) (*record.Database, mmio.Addr) {
	t.Helper()

	r, err := mmio.Anonymous(4096)
	if err != nil {
		t.Fatalf("Anonymous() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })

	reg := devbus.NewRegistry(devbus.Options{LockUnmaskedWrites: true})
	if _, err := reg.RegisterDevice("dev", r.Base(), devbus.WithSize(r.Size())); err != nil {
		t.Fatalf("RegisterDevice() error = %v", err)
	}

	db := record.NewDatabase()
	for _, cfg := range []record.Config{
		{Name: "relay", Kind: record.KindOutput, Link: "@dev+0x10", Mask: 0x00FF},
		{Name: "temp", Kind: record.KindInput, Link: "@dev+0x20,le16"},
	} {
		if _, err := db.Add(cfg); err != nil {
			t.Fatalf("Add(%s) error = %v", cfg.Name, err)
		}
	}
	if err := db.BindAll(reg); err != nil {
		t.Fatalf("BindAll() error = %v", err)
	}
	return db, r.Base()
}

func startBridge(t *testing.T, opts Options) *Bridge {
	t.Helper()
	b, err := NewBridge(opts)
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return b
}

func decodeAck(t *testing.T, p published) AckMessage {
	t.Helper()
	var ack AckMessage
	if err := json.Unmarshal(p.payload, &ack); err != nil {
		t.Fatalf("decoding ack: %v", err)
	}
	return ack
}

func TestNewBridge_MissingDependencies(t *testing.T) {
	db := record.NewDatabase()
	tests := []struct {
		name string
		opts Options
	}{
		{"no client", Options{Records: db}},
		{"no records", Options{MQTTClient: newFakeMQTT()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBridge(tt.opts)
			if !errors.Is(err, ErrMissingDependency) {
				t.Errorf("NewBridge() error = %v, want ErrMissingDependency", err)
			}
		})
	}
}

func TestBridge_StartSubscribeFailure(t *testing.T) {
	fake := newFakeMQTT()
	fake.subErr = errors.New("broker gone")
	b, err := NewBridge(Options{MQTTClient: fake, Records: record.NewDatabase()})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err == nil {
		t.Fatal("Start() expected error")
	}
}

func TestBridge_HandleUpdatePublishesRetainedState(t *testing.T) {
	fake := newFakeMQTT()
	b := startBridge(t, Options{MQTTClient: fake, Records: record.NewDatabase(), QoS: 1})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.HandleUpdate(context.Background(), scan.Update{
		Record:    "temp",
		Value:     -3,
		Raw:       0xFFFD,
		Alarm:     record.NoAlarm,
		Timestamp: now,
	})

	msgs := fake.on(mqtt.Topics{}.RecordState("temp"))
	if len(msgs) != 1 {
		t.Fatalf("state publishes = %d, want 1", len(msgs))
	}
	if !msgs[0].retained || msgs[0].qos != 1 {
		t.Errorf("retained=%v qos=%d, want retained qos 1", msgs[0].retained, msgs[0].qos)
	}

	var st StateMessage
	if err := json.Unmarshal(msgs[0].payload, &st); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	if st.Value != -3 || st.Raw != 0xFFFD || st.Severity != record.SeverityNone || !st.Timestamp.Equal(now) {
		t.Errorf("state = %+v", st)
	}
}

func TestBridge_PublishesWithConfiguredQoS(t *testing.T) {
	for _, qos := range []byte{0, 1, 2} {
		t.Run(fmt.Sprintf("qos=%d", qos), func(t *testing.T) {
			fake := newFakeMQTT()
			records, _ := newRecords(t)
			b := startBridge(t, Options{MQTTClient: fake, Records: records, QoS: qos})

			b.HandleUpdate(context.Background(), scan.Update{Record: "temp", Alarm: record.NoAlarm})
			fake.deliver(t, mqtt.Topics{}.RecordCommand("relay"), `{"value": 1}`)

			for _, topic := range []string{
				mqtt.Topics{}.RecordState("temp"),
				mqtt.Topics{}.RecordAck("relay"),
			} {
				msgs := fake.on(topic)
				if len(msgs) == 0 {
					t.Fatalf("nothing published on %s", topic)
				}
				if msgs[0].qos != qos {
					t.Errorf("%s qos = %d, want %d", topic, msgs[0].qos, qos)
				}
			}
		})
	}
}

func TestBridge_CommandWritesRegister(t *testing.T) {
	db, base := newRecords(t)
	base.Add(0x10).OutBE32(0xAAAA0000)

	fake := newFakeMQTT()
	startBridge(t, Options{MQTTClient: fake, Records: db})

	fake.deliver(t, mqtt.Topics{}.RecordCommand("relay"), `{"id":"c1","value":4660}`)

	if got := base.Add(0x10).InBE32(); got != 0xAAAA0034 {
		t.Errorf("register = %#x, want %#x", got, 0xAAAA0034)
	}

	acks := fake.on(mqtt.Topics{}.RecordAck("relay"))
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}
	if acks[0].retained {
		t.Error("ack should not be retained")
	}
	ack := decodeAck(t, acks[0])
	if !ack.OK || ack.CommandID != "c1" || ack.Error != "" {
		t.Errorf("ack = %+v, want ok for c1", ack)
	}

	// Without a reporter the bridge publishes the new state itself.
	if n := len(fake.on(mqtt.Topics{}.RecordState("relay"))); n != 1 {
		t.Errorf("state publishes = %d, want 1", n)
	}
}

func TestBridge_CommandFailures(t *testing.T) {
	tests := []struct {
		name    string
		record  string
		payload string
	}{
		{"malformed json", "relay", `{"value":`},
		{"missing value", "relay", `{"id":"c2"}`},
		{"input record", "temp", `{"value":1}`},
		{"unknown record", "ghost", `{"value":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _ := newRecords(t)
			fake := newFakeMQTT()
			startBridge(t, Options{MQTTClient: fake, Records: db})

			fake.deliver(t, mqtt.Topics{}.RecordCommand(tt.record), tt.payload)

			acks := fake.on(mqtt.Topics{}.RecordAck(tt.record))
			if len(acks) != 1 {
				t.Fatalf("acks = %d, want 1", len(acks))
			}
			ack := decodeAck(t, acks[0])
			if ack.OK || ack.Error == "" {
				t.Errorf("ack = %+v, want failure with error text", ack)
			}
			if n := len(fake.on(mqtt.Topics{}.RecordState(tt.record))); n != 0 {
				t.Errorf("state publishes = %d, want 0", n)
			}
		})
	}
}

func TestBridge_CommandFansOutThroughReporter(t *testing.T) {
	db, _ := newRecords(t)
	fake := newFakeMQTT()

	rec, err := db.Get("relay")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	var other []scan.Update
	scanner := scan.New(db.List(), scan.SinkFunc(func(_ context.Context, u scan.Update) {
		other = append(other, u)
	}))
	// Prime the scanner so only the command's change is reported.
	scanner.Report(context.Background(), rec)
	other = nil

	b := startBridge(t, Options{MQTTClient: fake, Records: db, Reporter: scanner})
	scanner.AddSink(b)

	fake.deliver(t, mqtt.Topics{}.RecordCommand("relay"), `{"value":7,"source":"panel"}`)

	if len(other) != 1 || other[0].Value != 7 {
		t.Errorf("other sink updates = %+v, want one with value 7", other)
	}
	if n := len(fake.on(mqtt.Topics{}.RecordState("relay"))); n != 1 {
		t.Errorf("state publishes = %d, want 1", n)
	}
}

func TestBridge_StopUnsubscribesOnce(t *testing.T) {
	fake := newFakeMQTT()
	b, err := NewBridge(Options{MQTTClient: fake, Records: record.NewDatabase()})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	b.Stop()
	b.Stop()

	if len(fake.unsubscribed) != 1 || fake.unsubscribed[0] != (mqtt.Topics{}).AllRecordCommands() {
		t.Errorf("unsubscribed = %v", fake.unsubscribed)
	}
}
