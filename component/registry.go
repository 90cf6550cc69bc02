package component

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/homestream/errors"
	"github.com/c360/homestream/topic"
)

// Factory creates an empty descriptor instance for a component kind. The
// registry unmarshals the raw configuration payload into the returned value,
// so factories must return a pointer type embedding Base.
type Factory func() Component

// Registration holds the factory and metadata for one component kind.
type Registration struct {
	Kind        Kind    `json:"kind"`
	Description string  `json:"description"` // Human-readable description
	Version     string  `json:"version"`     // Convention version
	Schema      string  `json:"schema"`      // JSON schema source for config validation
	Factory     Factory `json:"-"`           // Factory function (not serializable)

	compiled *gojsonschema.Schema
}

// Registry manages descriptor factories by component kind.
// It provides thread-safe registration and creation, mirroring the factory
// boundary the discovery session consumes: create(ownerID, identifier,
// rawConfig) → component | rejection.
type Registry struct {
	kinds map[Kind]*Registration
	mu    sync.RWMutex
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[Kind]*Registration),
	}
}

// DefaultRegistry returns a registry with all built-in component kinds
// registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, reg := range builtinRegistrations() {
		// Built-in registrations are statically valid.
		if err := r.Register(reg); err != nil {
			panic(fmt.Sprintf("component: registering builtin kind %q: %v", reg.Kind, err))
		}
	}
	return r
}

// Register registers a descriptor factory for a component kind.
// Returns an error if the registration is incomplete, the schema does not
// compile, or the kind is already registered.
func (r *Registry) Register(registration *Registration) error {
	if registration == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "registration validation")
	}
	if registration.Kind == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "kind validation")
	}
	if registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "factory function validation")
	}

	if registration.Schema != "" {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(registration.Schema))
		if err != nil {
			return errors.WrapInvalid(err, "Registry", "Register", "schema compilation")
		}
		registration.compiled = schema
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[registration.Kind]; exists {
		msg := fmt.Errorf("kind %q is already registered", registration.Kind)
		return errors.WrapInvalid(msg, "Registry", "Register", "duplicate kind check")
	}

	r.kinds[registration.Kind] = registration
	return nil
}

// Kinds returns the registered component kinds.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.kinds))
	for kind := range r.kinds {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Create builds a typed descriptor from a raw configuration payload.
//
// The component kind is taken from the identifier. Unknown kinds, payloads
// failing schema validation, and malformed JSON all return Invalid-classified
// errors; the caller decides whether a rejection is worth more than a debug
// log entry.
func (r *Registry) Create(ownerID string, id topic.ID, rawConfig []byte) (Component, error) {
	r.mu.RLock()
	registration, ok := r.kinds[Kind(id.Component)]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnsupportedComponent, id.Component),
			"Registry", "Create", "kind lookup")
	}

	if registration.compiled != nil {
		result, err := registration.compiled.Validate(gojsonschema.NewBytesLoader(rawConfig))
		if err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err),
				"Registry", "Create", "payload parsing")
		}
		if !result.Valid() {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrInvalidPayload, formatSchemaErrors(result)),
				"Registry", "Create", "schema validation")
		}
	}

	comp := registration.Factory()
	if err := json.Unmarshal(rawConfig, comp); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err),
			"Registry", "Create", "payload unmarshal")
	}

	b := comp.base()
	if b.Name == "" {
		b.Name = id.ObjectID
	}
	if b.UniqueID == "" {
		// The convention makes unique_id optional; synthesize one so
		// downstream consumers can always key on it.
		b.UniqueID = uuid.NewString()
	}
	b.meta = Metadata{
		Kind:     registration.Kind,
		Name:     b.Name,
		UniqueID: b.UniqueID,
		Owner:    ownerID,
		Source:   id,
	}

	return comp, nil
}

func formatSchemaErrors(result *gojsonschema.Result) string {
	msg := ""
	for i, resultErr := range result.Errors() {
		if i > 0 {
			msg += "; "
		}
		msg += resultErr.String()
	}
	return msg
}
