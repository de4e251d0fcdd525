package devbus

import (
	"errors"
	"fmt"
)

// Domain errors for the devbus package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, devbus.ErrBadField) {
//	    // configuration error, record cannot become operational
//	}
var (
	// ErrBadField is returned for every configuration error found while
	// resolving a link. The concrete error is a *FieldError.
	ErrBadField = errors.New("devbus: bad field")

	// ErrInvalidLink is returned when a descriptor does not match the grammar.
	ErrInvalidLink = errors.New("devbus: invalid link")

	// ErrInvalidOffset is returned when the offset is not an integer literal.
	ErrInvalidOffset = errors.New("devbus: invalid offset")

	// ErrOffsetOutOfRange is returned when the final address falls outside
	// a device window of known size.
	ErrOffsetOutOfRange = errors.New("devbus: offset outside device window")

	// ErrDeviceNotFound is returned when a device name is not registered.
	ErrDeviceNotFound = errors.New("devbus: device not found")

	// ErrDeviceExists is returned when registering a device name twice.
	ErrDeviceExists = errors.New("devbus: device already registered")

	// ErrUnknownStrategy is returned when an access name matches neither a
	// built-in nor a registered strategy.
	ErrUnknownStrategy = errors.New("devbus: unknown access method")

	// ErrStrategyExists is returned when registering a strategy name twice.
	ErrStrategyExists = errors.New("devbus: access method already registered")

	// ErrStrategyShadowsBuiltin is returned under RejectShadowing when a
	// custom strategy uses a built-in name.
	ErrStrategyShadowsBuiltin = errors.New("devbus: access method shadows built-in")

	// ErrInvalidName is returned for empty or grammar-illegal names.
	ErrInvalidName = errors.New("devbus: invalid name")

	// ErrInvalidAddress is returned when registering a zero base address.
	ErrInvalidAddress = errors.New("devbus: invalid base address")

	// ErrConstantLink is returned when reading or writing through a link
	// that is a constant rather than a register.
	ErrConstantLink = errors.New("devbus: link is not register backed")
)

// Field names reported in FieldError.
const (
	FieldLink   = "link"
	FieldDevice = "device"
	FieldOffset = "offset"
	FieldAccess = "access"
)

// FieldError is a configuration error attributable to one consumer.
//
// It matches both ErrBadField and its specific cause under errors.Is.
type FieldError struct {
	Consumer   string
	Field      string
	Descriptor string
	Err        error
}

func (e *FieldError) Error() string {
	if e.Consumer == "" {
		return fmt.Sprintf("devbus: bad field %s in %q: %v", e.Field, e.Descriptor, e.Err)
	}
	return fmt.Sprintf("devbus: %s: bad field %s in %q: %v", e.Consumer, e.Field, e.Descriptor, e.Err)
}

// Unwrap exposes ErrBadField and the cause.
func (e *FieldError) Unwrap() []error {
	return []error{ErrBadField, e.Err}
}

func badField(consumer, field, descriptor string, err error) *FieldError {
	return &FieldError{
		Consumer:   consumer,
		Field:      field,
		Descriptor: descriptor,
		Err:        err,
	}
}
