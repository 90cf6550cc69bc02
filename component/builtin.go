package component

// Per-kind JSON schemas for configuration payloads. Validation happens before
// unmarshaling so rejections carry the schema's reason rather than a decode
// error. The schemas are permissive about extra properties: devices announce
// convention fields this module does not model.

const sharedProperties = `
		"name": {"type": "string"},
		"unique_id": {"type": "string"},
		"availability_topic": {"type": "string"},
		"payload_available": {"type": "string"},
		"payload_not_available": {"type": "string"},
		"qos": {"type": "integer", "minimum": 0, "maximum": 2},
		"retain": {"type": "boolean"},
		"device": {"type": "object"}`

const switchSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {` + sharedProperties + `,
		"state_topic": {"type": "string"},
		"command_topic": {"type": "string", "minLength": 1},
		"payload_on": {"type": "string"},
		"payload_off": {"type": "string"},
		"optimistic": {"type": "boolean"}
	},
	"required": ["command_topic"]
}`

const lightSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {` + sharedProperties + `,
		"state_topic": {"type": "string"},
		"command_topic": {"type": "string", "minLength": 1},
		"brightness_state_topic": {"type": "string"},
		"brightness_command_topic": {"type": "string"},
		"brightness_scale": {"type": "integer", "minimum": 1},
		"rgb_state_topic": {"type": "string"},
		"rgb_command_topic": {"type": "string"}
	},
	"required": ["command_topic"]
}`

const sensorSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {` + sharedProperties + `,
		"state_topic": {"type": "string", "minLength": 1},
		"unit_of_measurement": {"type": "string"},
		"device_class": {"type": "string"},
		"value_template": {"type": "string"},
		"expire_after": {"type": "integer", "minimum": 0}
	},
	"required": ["state_topic"]
}`

const binarySensorSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {` + sharedProperties + `,
		"state_topic": {"type": "string", "minLength": 1},
		"payload_on": {"type": "string"},
		"payload_off": {"type": "string"},
		"device_class": {"type": "string"},
		"off_delay": {"type": "integer", "minimum": 0}
	},
	"required": ["state_topic"]
}`

const coverSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {` + sharedProperties + `,
		"state_topic": {"type": "string"},
		"command_topic": {"type": "string", "minLength": 1},
		"position_topic": {"type": "string"},
		"set_position_topic": {"type": "string"},
		"payload_open": {"type": "string"},
		"payload_close": {"type": "string"},
		"payload_stop": {"type": "string"}
	},
	"required": ["command_topic"]
}`

func builtinRegistrations() []*Registration {
	return []*Registration{
		{
			Kind:        KindSwitch,
			Description: "Two-state actuator controlled over a command topic",
			Version:     "1.0.0",
			Schema:      switchSchema,
			Factory:     func() Component { return &Switch{} },
		},
		{
			Kind:        KindLight,
			Description: "Dimmable actuator with optional brightness and color",
			Version:     "1.0.0",
			Schema:      lightSchema,
			Factory:     func() Component { return &Light{} },
		},
		{
			Kind:        KindSensor,
			Description: "Read-only value source",
			Version:     "1.0.0",
			Schema:      sensorSchema,
			Factory:     func() Component { return &Sensor{} },
		},
		{
			Kind:        KindBinarySensor,
			Description: "Read-only two-state source",
			Version:     "1.0.0",
			Schema:      binarySensorSchema,
			Factory:     func() Component { return &BinarySensor{} },
		},
		{
			Kind:        KindCover,
			Description: "Positionable actuator such as a blind or garage door",
			Version:     "1.0.0",
			Schema:      coverSchema,
			Factory:     func() Component { return &Cover{} },
		},
	}
}
