package influxdb

import "errors"

var (
	// ErrNotConnected is returned after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrUnhealthy wraps a failed or negative ping, at connect time and
	// from HealthCheck.
	ErrUnhealthy = errors.New("influxdb: server unhealthy")
)
