package mqtt

import "fmt"

// Subscribe registers handler for topic, which may contain + and #
// wildcards. The client remembers the subscription and renews it after
// every reconnect; a subscription the broker refuses is forgotten again.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrInvalidRequest, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.remember(topic, subscription{qos: qos, handler: handler})
	if err := await(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), "subscribe", topic); err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Unsubscribe drops topic locally first, so it is not renewed on reconnect
// even if the broker does not answer.
func (c *Client) Unsubscribe(topic string) error {
	if err := checkTopic(topic, 0); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.forget(topic)
	return await(c.client.Unsubscribe(topic), "unsubscribe", topic)
}

// HasSubscription reports whether topic is subscribed, by exact string.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	_, ok := c.subscriptions[topic]
	c.subMu.RUnlock()
	return ok
}

func (c *Client) remember(topic string, sub subscription) {
	c.subMu.Lock()
	c.subscriptions[topic] = sub
	c.subMu.Unlock()
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}
