// Package scan processes records periodically and fans value changes out to
// sinks.
//
// Records are grouped by scan period; each period runs in its own goroutine.
// A sink only hears about a record when its value or alarm differs from what
// was last emitted, so MQTT, InfluxDB and WebSocket consumers are not
// flooded with unchanged readings.
package scan
