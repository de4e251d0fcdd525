package mmio

import "errors"

// Domain errors for the mmio package.
var (
	// ErrInvalidSize is returned when a window size is zero or negative.
	ErrInvalidSize = errors.New("mmio: invalid window size")

	// ErrMapFailed is returned when a window cannot be mapped.
	ErrMapFailed = errors.New("mmio: mapping failed")

	// ErrClosed is returned when closing a region twice.
	ErrClosed = errors.New("mmio: region already closed")
)
