// Package msgpack provides a MessagePack serializer for stoat.
//
// MessagePack is a binary format producing smaller payloads than JSON, which
// matters when event and document volumes grow. The serializer shares the
// root package's registry mechanism: deserializing an unregistered type name
// is an error, never a silently untyped value.
//
// Basic usage:
//
//	serializer := msgpack.NewSerializer()
//	store := stoat.New(adapter, stoat.WithSerializer(serializer))
//	store.RegisterEvents(OrderPlaced{})
package msgpack

import (
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/weaselworks/go-stoat"
)

var _ stoat.Serializer = (*Serializer)(nil)

// Serializer is a MessagePack implementation of stoat.Serializer.
type Serializer struct {
	registry *stoat.TypeRegistry
}

// NewSerializer creates a Serializer with an empty type registry.
func NewSerializer() *Serializer {
	return &Serializer{registry: stoat.NewTypeRegistry()}
}

// NewSerializerWithRegistry creates a Serializer sharing an existing registry.
func NewSerializerWithRegistry(registry *stoat.TypeRegistry) *Serializer {
	return &Serializer{registry: registry}
}

// Register adds a type under an explicit name.
func (s *Serializer) Register(typeName string, example any) {
	s.registry.Register(typeName, example)
}

// RegisterAll registers types under their struct names.
func (s *Serializer) RegisterAll(examples ...any) {
	s.registry.RegisterAll(examples...)
}

// Registry exposes the underlying type registry.
func (s *Serializer) Registry() *stoat.TypeRegistry {
	return s.registry
}

// Serialize converts a value to MessagePack bytes.
func (s *Serializer) Serialize(value any) ([]byte, error) {
	if value == nil {
		return nil, stoat.NewSerializationError("", "serialize", fmt.Errorf("value cannot be nil"))
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		return nil, stoat.NewSerializationError(stoat.TypeNameOf(value), "serialize", err)
	}
	return data, nil
}

// Deserialize converts MessagePack bytes back to a value of the registered
// type. Unregistered types fail with stoat.ErrTypeNotRegistered.
func (s *Serializer) Deserialize(data []byte, typeName string) (any, error) {
	if len(data) == 0 {
		return nil, stoat.NewSerializationError(typeName, "deserialize", fmt.Errorf("data cannot be empty"))
	}

	t, ok := s.registry.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", stoat.ErrTypeNotRegistered, typeName)
	}

	value := reflect.New(t).Interface()
	if err := msgpack.Unmarshal(data, value); err != nil {
		return nil, stoat.NewSerializationError(typeName, "deserialize", err)
	}
	return reflect.ValueOf(value).Elem().Interface(), nil
}
