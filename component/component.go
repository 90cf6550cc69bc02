// Package component defines typed device component descriptors and the
// registry that creates them from raw configuration payloads.
//
// A descriptor is the parsed form of one configuration announcement: the
// JSON payload a device publishes under its config topic. Descriptors are
// opaque to the discovery session beyond their metadata; component runtime
// semantics (state and command handling) are out of scope.
package component

import (
	"github.com/c360/homestream/topic"
)

// Kind is the component kind segment of a discovery topic.
type Kind string

// Built-in component kinds following the HomeAssistant discovery convention.
const (
	KindSwitch       Kind = "switch"
	KindLight        Kind = "light"
	KindSensor       Kind = "sensor"
	KindBinarySensor Kind = "binary_sensor"
	KindCover        Kind = "cover"
)

// Metadata identifies a discovered component descriptor.
type Metadata struct {
	Kind     Kind     `json:"kind"`
	Name     string   `json:"name"`
	UniqueID string   `json:"unique_id"`
	Owner    string   `json:"owner"`  // identifier of the thing discovery ran for
	Source   topic.ID `json:"source"` // topic identifier the descriptor was announced under
}

// Component is a parsed, typed descriptor of one discovered device
// capability.
type Component interface {
	// Meta returns the descriptor's identifying metadata.
	Meta() Metadata

	// base restricts implementations to types embedding Base, which gives
	// the registry a place to fill in metadata after unmarshaling.
	base() *Base
}

// DeviceInfo describes the physical device a descriptor belongs to.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers,omitempty"`
	Name         string   `json:"name,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// Base carries the convention fields every descriptor kind accepts.
// Concrete descriptor types embed Base.
type Base struct {
	Name                string      `json:"name,omitempty"`
	UniqueID            string      `json:"unique_id,omitempty"`
	AvailabilityTopic   string      `json:"availability_topic,omitempty"`
	PayloadAvailable    string      `json:"payload_available,omitempty"`
	PayloadNotAvailable string      `json:"payload_not_available,omitempty"`
	QoS                 int         `json:"qos,omitempty"`
	Retain              bool        `json:"retain,omitempty"`
	Device              *DeviceInfo `json:"device,omitempty"`

	meta Metadata
}

// Meta returns the descriptor's identifying metadata.
func (b *Base) Meta() Metadata {
	return b.meta
}

func (b *Base) base() *Base {
	return b
}

// Switch is a two-state actuator controlled over a command topic.
type Switch struct {
	Base
	StateTopic   string `json:"state_topic,omitempty"`
	CommandTopic string `json:"command_topic"`
	PayloadOn    string `json:"payload_on,omitempty"`
	PayloadOff   string `json:"payload_off,omitempty"`
	Optimistic   bool   `json:"optimistic,omitempty"`
}

// Light is a dimmable actuator with optional brightness and color support.
type Light struct {
	Base
	StateTopic             string `json:"state_topic,omitempty"`
	CommandTopic           string `json:"command_topic"`
	BrightnessStateTopic   string `json:"brightness_state_topic,omitempty"`
	BrightnessCommandTopic string `json:"brightness_command_topic,omitempty"`
	BrightnessScale        int    `json:"brightness_scale,omitempty"`
	RGBStateTopic          string `json:"rgb_state_topic,omitempty"`
	RGBCommandTopic        string `json:"rgb_command_topic,omitempty"`
}

// Sensor is a read-only value source.
type Sensor struct {
	Base
	StateTopic        string `json:"state_topic"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`
	ValueTemplate     string `json:"value_template,omitempty"`
	ExpireAfter       int    `json:"expire_after,omitempty"`
}

// BinarySensor is a read-only two-state source.
type BinarySensor struct {
	Base
	StateTopic  string `json:"state_topic"`
	PayloadOn   string `json:"payload_on,omitempty"`
	PayloadOff  string `json:"payload_off,omitempty"`
	DeviceClass string `json:"device_class,omitempty"`
	OffDelay    int    `json:"off_delay,omitempty"`
}

// Cover is a positionable actuator such as a blind or garage door.
type Cover struct {
	Base
	StateTopic       string `json:"state_topic,omitempty"`
	CommandTopic     string `json:"command_topic"`
	PositionTopic    string `json:"position_topic,omitempty"`
	SetPositionTopic string `json:"set_position_topic,omitempty"`
	PayloadOpen      string `json:"payload_open,omitempty"`
	PayloadClose     string `json:"payload_close,omitempty"`
	PayloadStop      string `json:"payload_stop,omitempty"`
}
