// Package bridge connects the record database to MQTT.
//
// Every record update from the scanner is published retained on
// busmap/state/{record}. Output records accept commands on
// busmap/command/{record}; each command is acknowledged on
// busmap/ack/{record}.
//
// Example command payload:
//
//	{"id": "c-17", "value": 4660}
package bridge
