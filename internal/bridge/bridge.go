package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/busmap-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/busmap-core/internal/record"
	"github.com/nerrad567/busmap-core/internal/scan"
)

// Logger defines the logging interface used by the Bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Reporter pushes a record's state to every scanner sink if it changed.
type Reporter interface {
	Report(ctx context.Context, rec *record.Record) bool
}

// Options configures a Bridge.
type Options struct {
	MQTTClient MQTTClient
	Records    *record.Database

	// Reporter is optional. When set, state after a command is fanned out
	// to all sinks rather than only to MQTT.
	Reporter Reporter

	// QoS for the command subscription and for state and ack publishes,
	// used as given.
	QoS byte
}

// Bridge publishes record state to MQTT and executes MQTT commands.
type Bridge struct {
	mqtt     MQTTClient
	records  *record.Database
	reporter Reporter
	qos      byte
	topics   mqtt.Topics

	ctx       context.Context
	ctxCancel context.CancelFunc
	stopOnce  sync.Once

	logger Logger
}

// NewBridge creates a bridge. Call Start to subscribe to commands.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("%w: MQTT client", ErrMissingDependency)
	}
	if opts.Records == nil {
		return nil, fmt.Errorf("%w: record database", ErrMissingDependency)
	}

	return &Bridge{
		mqtt:     opts.MQTTClient,
		records:  opts.Records,
		reporter: opts.Reporter,
		qos:      opts.QoS,
		logger:   noopLogger{},
	}, nil
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Start subscribes to the command topics.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx, b.ctxCancel = context.WithCancel(ctx)

	topic := b.topics.AllRecordCommands()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleCommand); err != nil {
		b.ctxCancel()
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	b.logger.Info("mqtt bridge started", "commands", topic)
	return nil
}

// Stop unsubscribes from the command topics. It is safe to call twice.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.ctxCancel != nil {
			b.ctxCancel()
		}
		if err := b.mqtt.Unsubscribe(b.topics.AllRecordCommands()); err != nil {
			b.logger.Warn("unsubscribing from commands", "error", err)
		}
		b.logger.Info("mqtt bridge stopped")
	})
}

// HandleUpdate publishes u as retained record state. It implements scan.Sink.
func (b *Bridge) HandleUpdate(_ context.Context, u scan.Update) {
	b.publishState(NewStateMessage(u))
}

func (b *Bridge) publishState(msg StateMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("marshalling state", "record", msg.Record, "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.RecordState(msg.Record), payload, b.qos, true); err != nil {
		b.logger.Warn("publishing state", "record", msg.Record, "error", err)
	}
}

// handleCommand executes one command message. Errors are reported on the
// ack topic; the returned error is only logged by the MQTT client.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	name := topic[strings.LastIndexByte(topic, '/')+1:]

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.publishAck(name, cmd.ID, fmt.Errorf("invalid command payload: %w", err))
		return nil
	}
	if cmd.Value == nil {
		b.publishAck(name, cmd.ID, errors.New("command has no value"))
		return nil
	}
	source := cmd.Source
	if source == "" {
		source = "mqtt"
	}

	b.logger.Debug("mqtt command", "record", name, "value", *cmd.Value, "command_id", cmd.ID)

	rec, err := b.records.Write(name, *cmd.Value, source)
	b.publishAck(name, cmd.ID, err)
	if err != nil {
		b.logger.Warn("mqtt command failed", "record", name, "error", err)
		return nil
	}

	if b.reporter != nil && b.reporter.Report(b.context(), rec) {
		return nil
	}
	st := rec.Snapshot()
	b.publishState(StateMessage{
		Record:    st.Name,
		Value:     st.Value,
		Raw:       st.Raw,
		Severity:  st.Alarm.Severity,
		Status:    st.Alarm.Status,
		Timestamp: st.UpdatedAt.UTC(),
	})
	return nil
}

func (b *Bridge) publishAck(name, commandID string, cmdErr error) {
	ack := AckMessage{
		CommandID: commandID,
		Record:    name,
		OK:        cmdErr == nil,
		Timestamp: time.Now().UTC(),
	}
	if cmdErr != nil {
		ack.Error = cmdErr.Error()
	}

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("marshalling ack", "record", name, "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.RecordAck(name), payload, b.qos, false); err != nil {
		b.logger.Warn("publishing ack", "record", name, "error", err)
	}
}

func (b *Bridge) context() context.Context {
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}
