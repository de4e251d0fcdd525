// Package mqtt provides MQTT client connectivity for busmapd.
//
// It manages the broker connection with auto-reconnect, restores
// subscriptions after a reconnect, and publishes a retained status on
// busmap/system/status (with a Last Will for unexpected disconnects).
//
// # Topics
//
//	busmap/state/{record}    retained record value and alarm
//	busmap/command/{record}  writes to output records
//	busmap/ack/{record}      command results
//	busmap/system/status     online / offline
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllRecordCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
