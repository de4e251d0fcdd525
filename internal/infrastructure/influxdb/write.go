package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/busmap-core/internal/record"
	"github.com/nerrad567/busmap-core/internal/scan"
)

// Measurement names.
const (
	MeasurementRecordValue   = "record_value"
	MeasurementRegisterWrite = "register_write"
)

// HandleUpdate writes a record value point. It implements scan.Sink.
func (c *Client) HandleUpdate(_ context.Context, u scan.Update) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(recordValuePoint(c.site, u))
}

// WriteRegisterWrite records one output write attempt. It is meant to be
// registered with record.Database.OnWrite.
func (c *Client) WriteRegisterWrite(ev record.WriteEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(registerWritePoint(c.site, ev))
}

func recordValuePoint(site string, u scan.Update) *write.Point {
	tags := map[string]string{
		"record":   u.Record,
		"severity": string(u.Alarm.Severity),
	}
	if u.Alarm.Status != record.StatusNone {
		tags["status"] = string(u.Alarm.Status)
	}
	if site != "" {
		tags["site"] = site
	}

	ts := u.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(MeasurementRecordValue, tags, map[string]any{
		"value": u.Value,
		"raw":   int64(u.Raw),
	}, ts)
}

func registerWritePoint(site string, ev record.WriteEvent) *write.Point {
	tags := map[string]string{
		"record": ev.Record,
		"source": ev.Source,
	}
	if site != "" {
		tags["site"] = site
	}

	fields := map[string]any{
		"value": ev.Value,
		"mask":  int64(ev.Mask),
		"ok":    ev.Err == nil,
	}
	if ev.Address != "" {
		fields["address"] = ev.Address
	}

	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementRegisterWrite, tags, fields, ts)
}
