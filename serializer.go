package stoat

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Serializer handles event and document payload encoding.
type Serializer interface {
	// Serialize converts a value to bytes.
	Serialize(value any) ([]byte, error)

	// Deserialize converts bytes back to a value of the registered type.
	Deserialize(data []byte, typeName string) (any, error)
}

// TypeRegistry maps type names to Go types. The store uses one registry for
// both event payloads and read-model documents.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewTypeRegistry creates an empty TypeRegistry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]reflect.Type)}
}

// Register adds a mapping from typeName to the Go type of the example value.
func (r *TypeRegistry) Register(typeName string, example any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := reflect.TypeOf(example)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.types[typeName] = t
}

// RegisterAll registers example values under their struct names.
func (r *TypeRegistry) RegisterAll(examples ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, example := range examples {
		t := reflect.TypeOf(example)
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		r.types[t.Name()] = t
	}
}

// Lookup returns the Go type for the given type name.
func (r *TypeRegistry) Lookup(typeName string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[typeName]
	return t, ok
}

// RegisteredTypes returns all registered type names.
func (r *TypeRegistry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	return names
}

// JSONSerializer is the default Serializer using JSON encoding.
type JSONSerializer struct {
	registry *TypeRegistry
}

// NewJSONSerializer creates a JSONSerializer with an empty registry.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{registry: NewTypeRegistry()}
}

// NewJSONSerializerWithRegistry creates a JSONSerializer sharing the given
// registry.
func NewJSONSerializerWithRegistry(registry *TypeRegistry) *JSONSerializer {
	if registry == nil {
		registry = NewTypeRegistry()
	}
	return &JSONSerializer{registry: registry}
}

// Register adds a type under an explicit name.
func (s *JSONSerializer) Register(typeName string, example any) {
	s.registry.Register(typeName, example)
}

// RegisterAll registers types under their struct names.
func (s *JSONSerializer) RegisterAll(examples ...any) {
	s.registry.RegisterAll(examples...)
}

// Registry returns the underlying TypeRegistry.
func (s *JSONSerializer) Registry() *TypeRegistry {
	return s.registry
}

// Serialize converts a value to JSON bytes.
func (s *JSONSerializer) Serialize(value any) ([]byte, error) {
	if value == nil {
		return nil, NewSerializationError("nil", "serialize", fmt.Errorf("value cannot be nil"))
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, NewSerializationError(TypeNameOf(value), "serialize", err)
	}
	return data, nil
}

// Deserialize converts JSON bytes back to a value of the registered type.
// Unregistered types fail with ErrTypeNotRegistered so that a registration
// gap surfaces immediately rather than as a silently untyped map.
func (s *JSONSerializer) Deserialize(data []byte, typeName string) (any, error) {
	if len(data) == 0 {
		return nil, NewSerializationError(typeName, "deserialize", fmt.Errorf("data cannot be empty"))
	}

	t, ok := s.registry.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTypeNotRegistered, typeName)
	}

	ptr := reflect.New(t)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, NewSerializationError(typeName, "deserialize", err)
	}
	return ptr.Elem().Interface(), nil
}

// TypeNameOf returns the registry name for a value: its struct name.
func TypeNameOf(value any) string {
	if value == nil {
		return ""
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// serializeEvent encodes an event payload into EventData.
func serializeEvent(serializer Serializer, event any, metadata Metadata) (EventData, error) {
	typeName := TypeNameOf(event)
	if typeName == "" {
		return EventData{}, NewSerializationError("", "serialize", fmt.Errorf("cannot determine event type"))
	}

	data, err := serializer.Serialize(event)
	if err != nil {
		return EventData{}, err
	}

	return EventData{Type: typeName, Data: data, Metadata: metadata}, nil
}
