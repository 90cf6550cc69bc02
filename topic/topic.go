// Package topic parses and builds discovery topic identifiers.
//
// Configuration announcements follow the HomeAssistant MQTT discovery
// convention:
//
//	<prefix>/<component>/[<nodeID>/]<objectID>/config
//
// The node level is optional; both layouts must be accepted. Subscription
// filters use the MQTT wildcard syntax ("+" for one level, "#" for the
// remaining levels); the transport layer maps these to the broker's native
// wildcard form.
package topic

import (
	"fmt"
	"strings"

	"github.com/c360/homestream/errors"
)

// ConfigSuffix is the reserved trailing segment that marks a configuration
// announcement.
const ConfigSuffix = "config"

const (
	// WildcardLevel matches exactly one topic level in a subscription filter.
	WildcardLevel = "+"
	// WildcardTail matches all remaining topic levels in a subscription filter.
	WildcardTail = "#"
)

// ID identifies one announced component within a device tree.
type ID struct {
	// Prefix is the discovery prefix all announcements share (e.g. "devices").
	Prefix string
	// Component is the component kind segment (e.g. "switch", "sensor").
	Component string
	// NodeID scopes the object to a node. Optional; empty when the
	// announcing device does not use node IDs.
	NodeID string
	// ObjectID identifies the object within the component kind (and node,
	// if present).
	ObjectID string
}

// Parse splits a configuration topic into its identifier.
//
// The topic must have four segments (no node ID) or five segments (with a
// node ID) and must end in the configuration suffix. Wildcard segments are
// rejected; Parse handles delivered topics, not subscription filters.
func Parse(topic string) (ID, error) {
	segments := strings.Split(topic, "/")

	var id ID
	switch len(segments) {
	case 4:
		id = ID{Prefix: segments[0], Component: segments[1], ObjectID: segments[2]}
	case 5:
		id = ID{Prefix: segments[0], Component: segments[1], NodeID: segments[2], ObjectID: segments[3]}
	default:
		return ID{}, errors.WrapInvalid(
			fmt.Errorf("topic %q has %d segments, want 4 or 5", topic, len(segments)),
			"topic", "Parse", "segment count validation")
	}

	if segments[len(segments)-1] != ConfigSuffix {
		return ID{}, errors.WrapInvalid(
			fmt.Errorf("topic %q does not end in %q", topic, ConfigSuffix),
			"topic", "Parse", "suffix validation")
	}

	for _, seg := range segments {
		if seg == "" {
			return ID{}, errors.WrapInvalid(
				fmt.Errorf("topic %q contains an empty segment", topic),
				"topic", "Parse", "segment validation")
		}
		if seg == WildcardLevel || seg == WildcardTail {
			return ID{}, errors.WrapInvalid(
				fmt.Errorf("topic %q contains wildcard segment %q", topic, seg),
				"topic", "Parse", "wildcard validation")
		}
	}

	return id, nil
}

// Topic returns the concrete topic for this identifier with the given
// trailing segment. All identifier fields except NodeID must be set.
func (id ID) Topic(suffix string) string {
	if id.NodeID != "" {
		return strings.Join([]string{id.Prefix, id.Component, id.NodeID, id.ObjectID, suffix}, "/")
	}
	return strings.Join([]string{id.Prefix, id.Component, id.ObjectID, suffix}, "/")
}

// SubscriptionTopic returns the subscription filter that matches every
// announcement this identifier describes, with empty fields widened to
// wildcards.
//
// When neither NodeID nor ObjectID pins the identifier to a single layout
// the filter falls back to the tail wildcard, because a single filter cannot
// express "one or two levels here". Such a filter also matches sibling
// topics that are not configuration announcements; subscribers filter by
// suffix on delivery.
func (id ID) SubscriptionTopic(suffix string) string {
	component := id.Component
	if component == "" {
		component = WildcardLevel
	}

	if id.NodeID == "" && id.ObjectID == "" {
		return strings.Join([]string{id.Prefix, component, WildcardTail}, "/")
	}

	object := id.ObjectID
	if object == "" {
		object = WildcardLevel
	}
	if id.NodeID != "" {
		return strings.Join([]string{id.Prefix, component, id.NodeID, object, suffix}, "/")
	}
	return strings.Join([]string{id.Prefix, component, object, suffix}, "/")
}

// String returns the concrete configuration topic for the identifier.
func (id ID) String() string {
	return id.Topic(ConfigSuffix)
}
