package stoat

import (
	"fmt"
	"time"

	"github.com/weaselworks/go-stoat/adapters"
)

// Version constants for optimistic concurrency control.
const (
	// AnyVersion skips version checking, allowing append regardless of
	// current stream version.
	AnyVersion = adapters.AnyVersion

	// NoStream indicates the stream must not exist (for creating new streams).
	NoStream = adapters.NoStream

	// StreamExists indicates the stream must exist at any version.
	StreamExists = adapters.StreamExists
)

// Metadata contains contextual information about an event.
type Metadata struct {
	// CorrelationID links related events for tracing.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID identifies the event or command that caused this event.
	CausationID string `json:"causationId,omitempty"`

	// UserID identifies the user who triggered this event.
	UserID string `json:"userId,omitempty"`

	// Custom contains arbitrary key-value pairs.
	Custom map[string]string `json:"custom,omitempty"`
}

// WithCorrelationID returns a copy of Metadata with the correlation ID set.
func (m Metadata) WithCorrelationID(id string) Metadata {
	m.CorrelationID = id
	return m
}

// WithCausationID returns a copy of Metadata with the causation ID set.
func (m Metadata) WithCausationID(id string) Metadata {
	m.CausationID = id
	return m
}

// WithUserID returns a copy of Metadata with the user ID set.
func (m Metadata) WithUserID(id string) Metadata {
	m.UserID = id
	return m
}

// WithCustom returns a copy of Metadata with a custom key-value pair added.
func (m Metadata) WithCustom(key, value string) Metadata {
	custom := make(map[string]string, len(m.Custom)+1)
	for k, v := range m.Custom {
		custom[k] = v
	}
	custom[key] = value
	m.Custom = custom
	return m
}

// IsEmpty reports whether the Metadata has no values set.
func (m Metadata) IsEmpty() bool {
	return m.CorrelationID == "" && m.CausationID == "" && m.UserID == "" && len(m.Custom) == 0
}

// EventData represents a serialized event ready to be appended.
type EventData struct {
	// Type is the event type identifier (e.g. "WorkerAssigned").
	Type string

	// Data is the serialized event payload.
	Data []byte

	// Metadata contains optional contextual information.
	Metadata Metadata
}

// Validate checks if the EventData is complete.
func (e EventData) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("stoat: event type is required")
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("stoat: event data is required")
	}
	return nil
}

// StoredEvent represents a persisted event with all storage metadata.
// Events are write-once: they are never mutated or deleted after commit.
type StoredEvent struct {
	// ID is the globally unique event identifier.
	ID string

	// StreamID identifies the stream this event belongs to.
	StreamID string

	// Type is the event type identifier.
	Type string

	// Data is the serialized event payload.
	Data []byte

	// Metadata contains contextual information.
	Metadata Metadata

	// Version is the position within the stream (1-based, gapless,
	// assigned by the store at append time).
	Version int64

	// GlobalPosition is the commit order across all streams.
	GlobalPosition uint64

	// Timestamp is when the event was stored.
	Timestamp time.Time
}

// Event is a deserialized event with its payload as a Go value.
type Event struct {
	// ID is the globally unique event identifier.
	ID string

	// StreamID identifies the stream this event belongs to.
	StreamID string

	// Type is the event type identifier.
	Type string

	// Data is the deserialized event payload.
	Data any

	// Metadata contains contextual information.
	Metadata Metadata

	// Version is the position within the stream (1-based).
	Version int64

	// GlobalPosition is the commit order across all streams.
	GlobalPosition uint64

	// Timestamp is when the event was stored.
	Timestamp time.Time
}

// EventFromStored creates an Event from a StoredEvent and its decoded payload.
func EventFromStored(stored StoredEvent, data any) Event {
	return Event{
		ID:             stored.ID,
		StreamID:       stored.StreamID,
		Type:           stored.Type,
		Data:           data,
		Metadata:       stored.Metadata,
		Version:        stored.Version,
		GlobalPosition: stored.GlobalPosition,
		Timestamp:      stored.Timestamp,
	}
}

// StreamInfo contains metadata about an event stream.
type StreamInfo struct {
	// StreamID is the stream identifier.
	StreamID string

	// Version is the current stream version.
	Version int64

	// EventCount is the number of events in the stream.
	EventCount int64

	// CreatedAt is when the stream was created.
	CreatedAt time.Time

	// UpdatedAt is when the stream was last appended to.
	UpdatedAt time.Time
}

// Conversion helpers between the root package and the adapters package.

func metadataToAdapter(m Metadata) adapters.Metadata {
	return adapters.Metadata{
		CorrelationID: m.CorrelationID,
		CausationID:   m.CausationID,
		UserID:        m.UserID,
		Custom:        m.Custom,
	}
}

func metadataFromAdapter(m adapters.Metadata) Metadata {
	return Metadata{
		CorrelationID: m.CorrelationID,
		CausationID:   m.CausationID,
		UserID:        m.UserID,
		Custom:        m.Custom,
	}
}

func storedEventFromAdapter(s adapters.StoredEvent) StoredEvent {
	return StoredEvent{
		ID:             s.ID,
		StreamID:       s.StreamID,
		Type:           s.Type,
		Data:           s.Data,
		Metadata:       metadataFromAdapter(s.Metadata),
		Version:        s.Version,
		GlobalPosition: s.GlobalPosition,
		Timestamp:      s.Timestamp,
	}
}

func streamInfoFromAdapter(i adapters.StreamInfo) StreamInfo {
	return StreamInfo{
		StreamID:   i.StreamID,
		Version:    i.Version,
		EventCount: i.EventCount,
		CreatedAt:  i.CreatedAt,
		UpdatedAt:  i.UpdatedAt,
	}
}
