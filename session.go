package stoat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weaselworks/go-stoat/adapters"
)

// AppendOption configures a queued append.
type AppendOption func(*appendConfig)

type appendConfig struct {
	metadata        Metadata
	expectedVersion int64
}

// ExpectVersion sets the expected stream version for optimistic concurrency.
func ExpectVersion(v int64) AppendOption {
	return func(c *appendConfig) {
		c.expectedVersion = v
	}
}

// WithAppendMetadata sets metadata for all events in the append.
func WithAppendMetadata(m Metadata) AppendOption {
	return func(c *appendConfig) {
		c.metadata = m
	}
}

type pendingAppend struct {
	streamID        string
	events          []any
	expectedVersion int64
	metadata        Metadata
}

type docKey struct {
	docType string
	key     string
}

// Session is a unit of work against the store. Events queued with Append
// become durable on SaveChanges, which appends them, runs every registered
// inline projection and writes the affected documents, all in one backend
// transaction. A reader never observes the events without their projected
// state.
//
// A session that owns its transaction (from NewSession) is single-shot:
// SaveChanges commits and closes it, and any error rolls the whole
// transaction back and closes it. A session joined to a caller transaction
// (from SessionWithTx) flushes on SaveChanges but leaves commit and rollback
// to the caller, and can queue further appends afterwards.
type Session struct {
	store *DocumentStore
	tx    adapters.Tx
	owned bool

	pending []pendingAppend

	// Documents staged by the projection runtime during SaveChanges.
	docs     map[docKey]any
	docOrder []docKey

	closed bool
}

// Append queues events for a stream without a version precondition.
func (s *Session) Append(streamID string, events ...any) error {
	return s.AppendWithOptions(streamID, events)
}

// AppendExpecting queues events with an expected-version precondition.
func (s *Session) AppendExpecting(streamID string, expectedVersion int64, events ...any) error {
	return s.AppendWithOptions(streamID, events, ExpectVersion(expectedVersion))
}

// AppendWithOptions queues events for a stream. The events are validated and
// appended when SaveChanges runs.
func (s *Session) AppendWithOptions(streamID string, events []any, opts ...AppendOption) error {
	if s.closed {
		return ErrSessionClosed
	}
	if streamID == "" {
		return ErrEmptyStreamID
	}
	if len(events) == 0 {
		return ErrNoEvents
	}

	config := appendConfig{expectedVersion: AnyVersion}
	for _, opt := range opts {
		opt(&config)
	}

	s.pending = append(s.pending, pendingAppend{
		streamID:        streamID,
		events:          events,
		expectedVersion: config.expectedVersion,
		metadata:        config.metadata,
	})
	return nil
}

// appendedEvent pairs a stored event with the original payload value so the
// projection runtime does not have to round-trip through the serializer.
type appendedEvent struct {
	stored  adapters.StoredEvent
	payload any
}

// SaveChanges appends all queued events, runs the inline projections they
// trigger and upserts the resulting documents. For an owned transaction it
// then commits; any failure rolls the transaction back, so either the whole
// batch is durable or none of it is.
func (s *Session) SaveChanges(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}

	start := time.Now()
	appended, err := s.flush(ctx)

	elapsed := time.Since(start)
	for _, p := range s.pending {
		s.store.metrics.RecordAppend(p.streamID, len(p.events), elapsed, err)
	}

	if err != nil {
		if s.owned {
			if rbErr := s.tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, adapters.ErrTxDone) {
				s.store.logger.Error("rollback failed", "error", rbErr)
			}
			s.closed = true
		}
		return err
	}

	if s.owned {
		if err := s.tx.Commit(ctx); err != nil {
			s.closed = true
			return fmt.Errorf("stoat: commit failed: %w", err)
		}
		s.closed = true
	}

	s.store.logger.Debug("session saved", "events", len(appended), "documents", len(s.docOrder))
	s.pending = nil
	s.docs = nil
	s.docOrder = nil
	return nil
}

// flush performs the append-and-project cascade inside the transaction.
func (s *Session) flush(ctx context.Context) ([]appendedEvent, error) {
	var appended []appendedEvent

	for _, p := range s.pending {
		records := make([]adapters.EventRecord, len(p.events))
		for i, event := range p.events {
			eventData, err := serializeEvent(s.store.serializer, event, p.metadata)
			if err != nil {
				return nil, fmt.Errorf("stoat: failed to serialize event %d for stream %q: %w", i, p.streamID, err)
			}
			records[i] = adapters.EventRecord{
				Type:     eventData.Type,
				Data:     eventData.Data,
				Metadata: metadataToAdapter(eventData.Metadata),
			}
		}

		stored, err := s.tx.AppendEvents(ctx, p.streamID, records, p.expectedVersion)
		if err != nil {
			return nil, err
		}
		for i := range stored {
			appended = append(appended, appendedEvent{stored: stored[i], payload: p.events[i]})
		}
	}

	if err := s.runInlineProjections(ctx, appended); err != nil {
		return nil, err
	}

	for _, dk := range s.docOrder {
		data, err := s.store.serializer.Serialize(s.docs[dk])
		if err != nil {
			return nil, fmt.Errorf("stoat: failed to serialize document %s %q: %w", dk.docType, dk.key, err)
		}
		if err := s.tx.UpsertDocument(ctx, dk.docType, dk.key, data); err != nil {
			return nil, err
		}
		s.store.metrics.RecordDocumentWrite(dk.docType)
	}

	return appended, nil
}

// LoadDocument reads a document through the session's transaction, so a
// joined caller sees its own uncommitted writes. Returns ErrNotFound on a
// miss.
func (s *Session) LoadDocument(ctx context.Context, docType, key string) (any, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}

	data, err := s.tx.GetDocument(ctx, docType, key)
	if err != nil {
		if errors.Is(err, adapters.ErrDocumentNotFound) {
			return nil, fmt.Errorf("%w: %s %q", ErrNotFound, docType, key)
		}
		return nil, err
	}
	return s.store.serializer.Deserialize(data, docType)
}

// Close rolls back an owned transaction that was never saved. It is safe to
// defer unconditionally.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	if !s.owned {
		return nil
	}
	if err := s.tx.Rollback(ctx); err != nil && !errors.Is(err, adapters.ErrTxDone) {
		return err
	}
	return nil
}

// stageDocument records a projected document to be upserted at flush time.
func (s *Session) stageDocument(docType, key string, doc any) {
	dk := docKey{docType: docType, key: key}
	if s.docs == nil {
		s.docs = make(map[docKey]any)
	}
	if _, ok := s.docs[dk]; !ok {
		s.docOrder = append(s.docOrder, dk)
	}
	s.docs[dk] = doc
}

// lookupDocument finds the current document for a key: staged state first,
// then the transaction's view of storage.
func (s *Session) lookupDocument(ctx context.Context, docType, key string) (any, bool, error) {
	dk := docKey{docType: docType, key: key}
	if doc, ok := s.docs[dk]; ok {
		return doc, true, nil
	}

	data, err := s.tx.GetDocument(ctx, docType, key)
	if err != nil {
		if errors.Is(err, adapters.ErrDocumentNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	doc, err := s.store.serializer.Deserialize(data, docType)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}
