package bridge

import (
	"time"

	"github.com/nerrad567/busmap-core/internal/record"
	"github.com/nerrad567/busmap-core/internal/scan"
)

// StateMessage is published on busmap/state/{record}.
type StateMessage struct {
	Record    string          `json:"record"`
	Value     int64           `json:"value"`
	Raw       uint32          `json:"raw"`
	Severity  record.Severity `json:"severity"`
	Status    record.Status   `json:"status,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewStateMessage converts a scanner update.
func NewStateMessage(u scan.Update) StateMessage {
	return StateMessage{
		Record:    u.Record,
		Value:     u.Value,
		Raw:       u.Raw,
		Severity:  u.Alarm.Severity,
		Status:    u.Alarm.Status,
		Timestamp: u.Timestamp.UTC(),
	}
}

// CommandMessage is received on busmap/command/{record}.
type CommandMessage struct {
	// ID correlates the command with its acknowledgement. Optional.
	ID string `json:"id,omitempty"`

	// Value is the new record value. Required.
	Value *int64 `json:"value"`

	// Source names the sender for the audit trail; defaults to "mqtt".
	Source string `json:"source,omitempty"`
}

// AckMessage is published on busmap/ack/{record} for every command.
type AckMessage struct {
	CommandID string    `json:"command_id,omitempty"`
	Record    string    `json:"record"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
