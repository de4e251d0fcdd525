// Package api provides the HTTP REST API and WebSocket server for busmapd.
//
// All routes live under /api/v1:
//
//	GET  /health                 component health checks
//	GET  /metrics                runtime, bus and record counters
//	GET  /devices[/{name}]       registered bus devices
//	GET  /strategies             access methods and the shadow policy
//	GET  /records[/{name}]       record state (?kind=input|output)
//	PUT  /records/{name}         write an output record  {"value": n}
//	POST /records/{name}/process run one processing cycle
//	GET  /audit                  register write trail
//	GET  /ws                     live record.value_changed events
//
// When security.jwt.secret is set, PUT and POST require a bearer token whose
// role grants record:write.
//
// The server is a scan.Sink: every scanner update is broadcast to WebSocket
// clients subscribed to "record.value_changed".
package api
