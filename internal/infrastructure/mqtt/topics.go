package mqtt

import "fmt"

// TopicPrefix is the root of every busmapd topic.
const TopicPrefix = "busmap"

// Topics builds busmapd MQTT topics.
//
// Record topics use the flat scheme busmap/{category}/{record}:
//
//	topics := mqtt.Topics{}
//	topics.RecordState("temp1")   // busmap/state/temp1
//	topics.RecordCommand("relay") // busmap/command/relay
type Topics struct{}

// RecordState returns the retained state topic of a record.
func (Topics) RecordState(record string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, record)
}

// RecordCommand returns the topic on which a record accepts writes.
func (Topics) RecordCommand(record string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, record)
}

// RecordAck returns the topic on which command results are published.
func (Topics) RecordAck(record string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, record)
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllRecordStates matches every record state topic.
func (Topics) AllRecordStates() string {
	return TopicPrefix + "/state/+"
}

// AllRecordCommands matches every record command topic.
func (Topics) AllRecordCommands() string {
	return TopicPrefix + "/command/+"
}

// AllRecordAcks matches every record ack topic.
func (Topics) AllRecordAcks() string {
	return TopicPrefix + "/ack/+"
}

// AllTopics matches everything under the busmap prefix.
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
