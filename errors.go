package stoat

import (
	"errors"
	"fmt"

	"github.com/weaselworks/go-stoat/adapters"
)

// Sentinel errors for common failure conditions. Use errors.Is() to check.
// Adapter-level sentinels are aliased here so callers only import stoat.
var (
	// ErrConcurrencyConflict indicates an optimistic concurrency violation.
	// Recoverable: re-read the stream and retry the whole append.
	ErrConcurrencyConflict = adapters.ErrConcurrencyConflict

	// ErrNotFound indicates a document lookup missed. A query miss is a
	// valid empty result, not a storage failure.
	ErrNotFound = errors.New("stoat: not found")

	// ErrValidation indicates malformed input, such as an inverted date
	// range handed to a fan-out rule. Not retryable without fixing input.
	ErrValidation = errors.New("stoat: validation failed")

	// ErrConfiguration indicates an incomplete projection definition.
	// Raised at registration time, never during an append.
	ErrConfiguration = errors.New("stoat: invalid projection configuration")

	// ErrProjectionFailed indicates a fold failed while processing an
	// append. The enclosing transaction was rolled back.
	ErrProjectionFailed = errors.New("stoat: projection failed")

	// ErrSerializationFailed indicates payload encoding or decoding failed.
	ErrSerializationFailed = errors.New("stoat: serialization failed")

	// ErrTypeNotRegistered indicates an event or document type unknown to
	// the serializer registry.
	ErrTypeNotRegistered = errors.New("stoat: type not registered")

	// ErrSessionClosed indicates use of a session after SaveChanges or Close.
	ErrSessionClosed = errors.New("stoat: session is closed")

	// ErrProjectionAlreadyRegistered indicates a duplicate projection name.
	ErrProjectionAlreadyRegistered = errors.New("stoat: projection already registered")

	// ErrEmptyStreamID indicates an empty stream ID was provided.
	ErrEmptyStreamID = adapters.ErrEmptyStreamID

	// ErrNoEvents indicates no events were provided for append.
	ErrNoEvents = adapters.ErrNoEvents

	// ErrStreamNotFound indicates the requested stream does not exist.
	ErrStreamNotFound = adapters.ErrStreamNotFound

	// ErrAdapterClosed indicates the backing adapter has been closed.
	ErrAdapterClosed = adapters.ErrAdapterClosed
)

// ConcurrencyError is re-exported from the adapters package; use errors.As
// to extract expected and actual versions.
type ConcurrencyError = adapters.ConcurrencyError

// ValidationError reports malformed input to a store operation.
type ValidationError struct {
	// Source names the input that failed, e.g. an event type.
	Source string

	// Reason describes why the input was rejected.
	Reason string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("stoat: invalid %s: %s", e.Source, e.Reason)
}

// Is reports whether this error matches the target error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Unwrap returns the underlying sentinel for errors.Unwrap().
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(source, reason string) *ValidationError {
	return &ValidationError{Source: source, Reason: reason}
}

// ConfigurationError reports an incomplete or contradictory projection
// definition. It is returned by RegisterProjection and never at append time.
type ConfigurationError struct {
	// Projection is the name of the offending definition.
	Projection string

	// Reason describes what is missing or contradictory.
	Reason string
}

// Error returns the error message.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("stoat: projection %q misconfigured: %s", e.Projection, e.Reason)
}

// Is reports whether this error matches the target error.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Unwrap returns the underlying sentinel for errors.Unwrap().
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(projection, reason string) *ConfigurationError {
	return &ConfigurationError{Projection: projection, Reason: reason}
}

// ProjectionError reports a fold failure during inline processing. The
// transaction carrying the append was rolled back; none of its events or
// documents were persisted.
type ProjectionError struct {
	// Projection is the name of the failing definition.
	Projection string

	// StreamID is the stream whose append triggered the failure.
	StreamID string

	// EventType is the (possibly derived) event being folded.
	EventType string

	// Cause is the error returned or panic raised by the fold.
	Cause error
}

// Error returns the error message.
func (e *ProjectionError) Error() string {
	return fmt.Sprintf("stoat: projection %q failed folding %s from stream %q: %v",
		e.Projection, e.EventType, e.StreamID, e.Cause)
}

// Is reports whether this error matches the target error.
func (e *ProjectionError) Is(target error) bool {
	return target == ErrProjectionFailed
}

// Unwrap returns the fold's own error for errors.Unwrap().
func (e *ProjectionError) Unwrap() error {
	return e.Cause
}

// NewProjectionError creates a new ProjectionError.
func NewProjectionError(projection, streamID, eventType string, cause error) *ProjectionError {
	return &ProjectionError{
		Projection: projection,
		StreamID:   streamID,
		EventType:  eventType,
		Cause:      cause,
	}
}

// SerializationError reports a payload encoding or decoding failure.
type SerializationError struct {
	// TypeName is the event or document type involved.
	TypeName string

	// Operation is "serialize" or "deserialize".
	Operation string

	// Cause is the underlying codec error.
	Cause error
}

// Error returns the error message.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("stoat: failed to %s type %q: %v", e.Operation, e.TypeName, e.Cause)
}

// Is reports whether this error matches the target error.
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerializationFailed
}

// Unwrap returns the underlying cause for errors.Unwrap().
func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// NewSerializationError creates a new SerializationError.
func NewSerializationError(typeName, operation string, cause error) *SerializationError {
	return &SerializationError{TypeName: typeName, Operation: operation, Cause: cause}
}
