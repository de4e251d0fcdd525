// Package influxdb writes record history to InfluxDB v2.
//
// It wraps the official influxdb-client-go library. Two measurements are
// written:
//
//	record_value     one point per scanner update (tags: record, severity, status, site)
//	register_write   one point per output write attempt (tags: record, source, site)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	scanner.AddSink(client)
//	records.OnWrite(client.WriteRegisterWrite)
//
// Writes are non-blocking and batched (batch_size, flush_interval). Batch
// failures are delivered to the SetOnError callback.
package influxdb
