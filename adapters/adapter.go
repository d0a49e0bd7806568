// Package adapters defines the persistence contract for stoat backends.
//
// A backend exposes transactional, key-ordered storage for two kinds of
// rows: append-only events keyed by (stream, version) and mutable read-model
// documents keyed by (type, key). Event appends and document upserts issued
// through one Tx commit or roll back together.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Version constants for optimistic concurrency control.
const (
	// AnyVersion skips the version check entirely.
	AnyVersion int64 = -1

	// NoStream requires that the stream does not exist yet.
	NoStream int64 = 0

	// StreamExists requires that the stream already exists, at any version.
	StreamExists int64 = -2
)

// Sentinel errors shared by all adapter implementations.
// Backends return these (or errors matching via errors.Is) so callers can
// handle failures uniformly.
var (
	// ErrConcurrencyConflict is returned when an expected-version check fails.
	ErrConcurrencyConflict = errors.New("stoat: concurrency conflict")

	// ErrStreamNotFound is returned when a stream does not exist.
	ErrStreamNotFound = errors.New("stoat: stream not found")

	// ErrDocumentNotFound is returned when a document lookup misses.
	ErrDocumentNotFound = errors.New("stoat: document not found")

	// ErrEmptyStreamID is returned when an empty stream ID is provided.
	ErrEmptyStreamID = errors.New("stoat: stream ID is required")

	// ErrNoEvents is returned when attempting to append zero events.
	ErrNoEvents = errors.New("stoat: no events to append")

	// ErrInvalidVersion is returned for a malformed expected version.
	ErrInvalidVersion = errors.New("stoat: invalid expected version")

	// ErrAdapterClosed is returned for operations on a closed adapter.
	ErrAdapterClosed = errors.New("stoat: adapter is closed")

	// ErrTxDone is returned for operations on a committed or rolled back Tx.
	ErrTxDone = errors.New("stoat: transaction already finished")
)

// ConcurrencyError reports an expected-version mismatch with enough context
// for the caller to re-read and retry.
type ConcurrencyError struct {
	StreamID        string
	ExpectedVersion int64
	ActualVersion   int64
}

// Error returns the error message.
func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("stoat: concurrency conflict on stream %q: expected version %d, actual version %d",
		e.StreamID, e.ExpectedVersion, e.ActualVersion)
}

// Is reports whether this error matches the target error.
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// Unwrap returns the underlying sentinel for errors.Unwrap().
func (e *ConcurrencyError) Unwrap() error {
	return ErrConcurrencyConflict
}

// NewConcurrencyError creates a new ConcurrencyError.
func NewConcurrencyError(streamID string, expected, actual int64) *ConcurrencyError {
	return &ConcurrencyError{
		StreamID:        streamID,
		ExpectedVersion: expected,
		ActualVersion:   actual,
	}
}

// Metadata carries contextual information persisted alongside an event.
type Metadata struct {
	// CorrelationID links related events across operations.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID identifies the event or command that caused this event.
	CausationID string `json:"causationId,omitempty"`

	// UserID identifies who triggered this event.
	UserID string `json:"userId,omitempty"`

	// Custom holds any additional metadata.
	Custom map[string]string `json:"custom,omitempty"`
}

// EventRecord is an event to be appended, before the store assigns positions.
type EventRecord struct {
	// Type is the event type identifier.
	Type string

	// Data is the serialized event payload.
	Data []byte

	// Metadata contains optional contextual information.
	Metadata Metadata
}

// StoredEvent is a durably appended event with its storage coordinates.
type StoredEvent struct {
	// ID is the unique event identifier.
	ID string

	// StreamID is the stream this event belongs to.
	StreamID string

	// Type is the event type identifier.
	Type string

	// Data is the serialized event payload.
	Data []byte

	// Metadata contains contextual information.
	Metadata Metadata

	// Version is the position within the stream (1-based, gapless).
	Version int64

	// GlobalPosition is the commit ordering position across all streams.
	// Backends that stage writes assign it at commit time.
	GlobalPosition uint64

	// Timestamp is when the event was stored.
	Timestamp time.Time
}

// StreamInfo describes an event stream.
type StreamInfo struct {
	// StreamID is the stream identifier.
	StreamID string

	// Version is the current stream high-water mark.
	Version int64

	// EventCount is the number of events in the stream.
	EventCount int64

	// CreatedAt is when the first event was stored.
	CreatedAt time.Time

	// UpdatedAt is when the last event was stored.
	UpdatedAt time.Time
}

// DocumentRecord is a stored read-model document row.
type DocumentRecord struct {
	// DocType names the document type this row belongs to.
	DocType string

	// Key is the identity key of the document.
	Key string

	// Data is the serialized document.
	Data []byte

	// UpdatedAt is when the document was last written.
	UpdatedAt time.Time
}

// Adapter is the storage backend contract.
//
// The read methods outside a Tx observe committed state only. All writes go
// through a Tx obtained from BeginTx, so an event append and the document
// writes it triggers are atomic.
type Adapter interface {
	// BeginTx starts a transaction covering events and documents.
	BeginTx(ctx context.Context) (Tx, error)

	// LoadEvents returns committed events of a stream with Version > fromVersion,
	// in version order. A missing stream yields an empty slice.
	LoadEvents(ctx context.Context, streamID string, fromVersion int64) ([]StoredEvent, error)

	// GetStreamInfo returns metadata about a stream.
	// Returns ErrStreamNotFound if the stream does not exist.
	GetStreamInfo(ctx context.Context, streamID string) (*StreamInfo, error)

	// ListStreams returns info for all known streams, ordered by stream ID.
	ListStreams(ctx context.Context) ([]StreamInfo, error)

	// GetLastPosition returns the global position of the last committed event,
	// or 0 if no events exist.
	GetLastPosition(ctx context.Context) (uint64, error)

	// GetDocument returns the committed document under (docType, key).
	// Returns ErrDocumentNotFound on a miss.
	GetDocument(ctx context.Context, docType, key string) ([]byte, error)

	// ListDocuments returns all committed documents of a type, ordered by key.
	ListDocuments(ctx context.Context, docType string) ([]DocumentRecord, error)

	// Initialize creates the backing schema. Called once at startup.
	Initialize(ctx context.Context) error

	// Close releases resources held by the adapter.
	Close() error
}

// Tx is one atomic unit of work. Reads within the Tx observe its own
// uncommitted writes. A Tx must be finished by exactly one call to Commit
// or Rollback; both are safe to call after the other as no-ops returning
// ErrTxDone.
type Tx interface {
	// AppendEvents appends events to a stream, assigning contiguous versions
	// after the stream's current high-water mark. The stream is created
	// implicitly at version 1. expectedVersion follows the version constants;
	// a mismatch returns a ConcurrencyError.
	AppendEvents(ctx context.Context, streamID string, events []EventRecord, expectedVersion int64) ([]StoredEvent, error)

	// LoadEvents returns stream events visible to this transaction.
	LoadEvents(ctx context.Context, streamID string, fromVersion int64) ([]StoredEvent, error)

	// GetDocument returns the document visible to this transaction.
	// Returns ErrDocumentNotFound on a miss.
	GetDocument(ctx context.Context, docType, key string) ([]byte, error)

	// UpsertDocument creates or replaces the document under (docType, key).
	UpsertDocument(ctx context.Context, docType, key string, data []byte) error

	// Commit makes all staged writes durable.
	Commit(ctx context.Context) error

	// Rollback discards all staged writes.
	Rollback(ctx context.Context) error
}
