package mqtt

import "errors"

var (
	// ErrNotConnected is returned while the client is disconnected.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed wraps a failed initial connect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrInvalidRequest is returned before anything is sent: empty topic,
	// QoS above 2, oversized payload or nil handler.
	ErrInvalidRequest = errors.New("mqtt: invalid request")

	// ErrRequestFailed wraps a publish, subscribe or unsubscribe that the
	// broker rejected or did not confirm within the timeout.
	ErrRequestFailed = errors.New("mqtt: request failed")
)
