// Package transport defines the broker connection boundary consumed by
// discovery sessions and provides its NATS-backed implementation.
//
// Sessions speak MQTT-convention topic strings (slash-separated levels,
// "+" and "#" wildcards). The NATS implementation maps those to subjects
// ("." levels, "*" and ">" wildcards) on the way in and back to topics on
// delivery, so callers never see broker-native addressing.
package transport

// MessageSink receives messages delivered for a subscription.
type MessageSink interface {
	// OnMessage is invoked for every message matching the subscription,
	// including messages on sibling topics a wildcard filter happens to
	// match. Implementations must not block: delivery for the whole
	// subscription stalls behind a slow sink.
	OnMessage(topic string, payload []byte)
}

// Connection is the transport handle discovery sessions consume.
//
// A session holds its Connection non-owning: connecting, reconnecting and
// closing belong to whoever created the connection. Implementations must be
// safe for concurrent use.
type Connection interface {
	// Subscribe registers sink for all messages matching topic.
	Subscribe(topic string, sink MessageSink) error

	// Unsubscribe removes a previously registered (topic, sink) pair.
	// Unsubscribing a pair that is not registered is a no-op.
	Unsubscribe(topic string, sink MessageSink) error

	// Publish sends payload on the given concrete topic.
	Publish(topic string, payload []byte) error
}
