package record

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the direction of a record.
type Kind string

// Record kinds.
const (
	KindInput  Kind = "input"
	KindOutput Kind = "output"
)

// Severity is the alarm severity of a record.
type Severity string

// Alarm severities, in increasing order.
const (
	SeverityNone    Severity = "NO_ALARM"
	SeverityMinor   Severity = "MINOR"
	SeverityMajor   Severity = "MAJOR"
	SeverityInvalid Severity = "INVALID"
)

// Status is the reason for an alarm.
type Status string

// Alarm statuses.
const (
	StatusNone  Status = ""
	StatusRead  Status = "READ"
	StatusWrite Status = "WRITE"
	StatusLink  Status = "LINK"
	StatusUDF   Status = "UDF" // value undefined, never processed
)

// Alarm is a severity and status pair.
type Alarm struct {
	Severity Severity `json:"severity"`
	Status   Status   `json:"status,omitempty"`
}

// NoAlarm is the healthy alarm state.
var NoAlarm = Alarm{Severity: SeverityNone}

// IsSet reports whether the alarm is anything other than NO_ALARM.
func (a Alarm) IsSet() bool {
	return a.Severity != SeverityNone && a.Severity != ""
}

func (a Alarm) String() string {
	if a.Status == StatusNone {
		return string(a.Severity)
	}
	return string(a.Severity) + "/" + string(a.Status)
}

// Config describes one record.
type Config struct {
	Name        string
	Description string
	Kind        Kind

	// Link is the device link descriptor, e.g. "@adc+0x10,le16".
	Link string

	// Instance and Shift supply the card number and its address shift when
	// the link does not carry them itself.
	Instance uint32
	Shift    uint

	// Mask selects the register bits the record owns. Zero means all.
	Mask uint32

	// PINI processes the record once after binding. An output record
	// without PINI instead loads its initial value from the register.
	PINI bool

	// Scan is the periodic processing interval. Zero disables scanning.
	Scan time.Duration

	// Signed interprets the raw value as a two's complement integer.
	Signed bool
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Name == "" || strings.ContainsAny(c.Name, " \t\r\n/#+") {
		return fmt.Errorf("%w: name %q", ErrInvalidRecord, c.Name)
	}
	if c.Kind != KindInput && c.Kind != KindOutput {
		return fmt.Errorf("%w: %s: kind %q must be input or output", ErrInvalidRecord, c.Name, c.Kind)
	}
	if c.Scan < 0 {
		return fmt.Errorf("%w: %s: negative scan period", ErrInvalidRecord, c.Name)
	}
	return nil
}

// State is a point-in-time copy of a record's runtime state.
type State struct {
	Name        string    `json:"name"`
	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	Kind        Kind      `json:"kind"`
	Link        string    `json:"link"`
	Device      string    `json:"device,omitempty"`
	Address     string    `json:"address,omitempty"`
	Method      string    `json:"method,omitempty"`
	Mask        uint32    `json:"mask"`
	Scan        string    `json:"scan,omitempty"`
	Bound       bool      `json:"bound"`
	Value       int64     `json:"value"`
	Raw         uint32    `json:"raw"`
	Alarm       Alarm     `json:"alarm"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// WriteEvent reports one attempt to write an output record.
type WriteEvent struct {
	Record  string
	Address string
	Value   int64
	Mask    uint32
	Source  string
	Err     error
	Time    time.Time
}
