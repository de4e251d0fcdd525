package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize bounds a single message.
const maxPayloadSize = 1 << 20

func checkTopic(topic string, qos byte) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidRequest)
	}
	if qos > maxQoS {
		return fmt.Errorf("%w: qos %d", ErrInvalidRequest, qos)
	}
	return nil
}

// await waits for the broker to confirm op.
func await(token pahomqtt.Token, op, topic string) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s %s: no confirmation after %v", ErrRequestFailed, op, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, op, topic, err)
	}
	return nil
}

// Publish sends payload to topic.
//
// Record state is published retained so that new subscribers see the last
// value immediately; acks are not retained.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload of %d bytes over %d", ErrInvalidRequest, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.client.Publish(topic, qos, retained, payload), "publish", topic)
}

// PublishRetained publishes a retained message with the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, c.qos(), true)
}
