package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/busmap-core/internal/record"
)

// SystemMetrics is the body of GET /metrics.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          *MQTTMetrics   `json:"mqtt,omitempty"`
	Bus           BusMetrics     `json:"bus"`
	Records       RecordMetrics  `json:"records"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics is present only when MQTT is enabled.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// BusMetrics counts registry entries.
type BusMetrics struct {
	Devices    int `json:"devices"`
	Strategies int `json:"strategies"`
}

// RecordMetrics summarises record health.
type RecordMetrics struct {
	Total      int                     `json:"total"`
	Bound      int                     `json:"bound"`
	BySeverity map[record.Severity]int `json:"by_severity"`
}

const bytesPerMB = 1024 * 1024

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / bytesPerMB,
			NumGC:         mem.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount()},
		Bus: BusMetrics{
			Devices:    len(s.bus.Devices()),
			Strategies: len(s.bus.Strategies()),
		},
		Records: RecordMetrics{BySeverity: make(map[record.Severity]int)},
	}
	if s.mqtt != nil {
		m.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	for _, rec := range s.records.List() {
		_, alarm := rec.Value()
		m.Records.Total++
		if rec.IsBound() {
			m.Records.Bound++
		}
		m.Records.BySeverity[alarm.Severity]++
	}

	writeJSON(w, http.StatusOK, m)
}
