package transport

import "strings"

// Topic/subject mapping between the MQTT-convention form sessions use and
// NATS-native addressing. Topic levels must not contain "." and subject
// tokens must not contain "/"; device object IDs following the discovery
// convention satisfy both.

// ToSubject converts a slash-separated topic (or subscription filter) to a
// NATS subject.
func ToSubject(topic string) string {
	levels := strings.Split(topic, "/")
	for i, level := range levels {
		switch level {
		case "+":
			levels[i] = "*"
		case "#":
			levels[i] = ">"
		}
	}
	return strings.Join(levels, ".")
}

// FromSubject converts a NATS subject back to the slash-separated topic form.
func FromSubject(subject string) string {
	tokens := strings.Split(subject, ".")
	for i, token := range tokens {
		switch token {
		case "*":
			tokens[i] = "+"
		case ">":
			tokens[i] = "#"
		}
	}
	return strings.Join(tokens, "/")
}
