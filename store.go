package stoat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/weaselworks/go-stoat/adapters"
)

// Logger defines the logging interface used by the store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a no-op logger implementation.
type noopLogger struct{}

func (l *noopLogger) Debug(msg string, args ...any) {}
func (l *noopLogger) Info(msg string, args ...any)  {}
func (l *noopLogger) Warn(msg string, args ...any)  {}
func (l *noopLogger) Error(msg string, args ...any) {}

// DocumentStore is the main entry point: it owns event streams, registered
// inline projections, and the read-model documents they produce.
type DocumentStore struct {
	adapter    adapters.Adapter
	serializer Serializer
	logger     Logger
	metrics    StoreMetrics

	mu          sync.RWMutex
	projections []*Definition
}

// Option configures a DocumentStore.
type Option func(*DocumentStore)

// WithSerializer sets a custom serializer.
func WithSerializer(s Serializer) Option {
	return func(ds *DocumentStore) {
		ds.serializer = s
	}
}

// WithLogger sets a custom logger.
func WithLogger(l Logger) Option {
	return func(ds *DocumentStore) {
		ds.logger = l
	}
}

// WithMetrics sets a metrics sink.
func WithMetrics(m StoreMetrics) Option {
	return func(ds *DocumentStore) {
		ds.metrics = m
	}
}

// New creates a DocumentStore on top of the given adapter.
func New(adapter adapters.Adapter, opts ...Option) *DocumentStore {
	ds := &DocumentStore{
		adapter:    adapter,
		serializer: NewJSONSerializer(),
		logger:     &noopLogger{},
		metrics:    noopMetrics{},
	}

	for _, opt := range opts {
		opt(ds)
	}

	return ds
}

// Adapter returns the underlying adapter.
func (ds *DocumentStore) Adapter() adapters.Adapter {
	return ds.adapter
}

// Serializer returns the store's serializer.
func (ds *DocumentStore) Serializer() Serializer {
	return ds.serializer
}

// RegisterEvents registers event payload types with the serializer so they
// can be deserialized back to their Go types.
func (ds *DocumentStore) RegisterEvents(events ...any) {
	if js, ok := ds.serializer.(interface{ RegisterAll(...any) }); ok {
		js.RegisterAll(events...)
	}
}

// RegisterDocuments registers read-model document types with the serializer.
func (ds *DocumentStore) RegisterDocuments(docs ...any) {
	ds.RegisterEvents(docs...)
}

// RegisterProjection validates and registers inline projection definitions.
// All configuration problems surface here, before any event is appended.
func (ds *DocumentStore) RegisterProjection(defs ...*Definition) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	for _, def := range defs {
		if def == nil {
			return NewConfigurationError("", "nil projection definition")
		}
		if err := def.validate(); err != nil {
			return err
		}
		for _, existing := range ds.projections {
			if existing.Name() == def.Name() {
				return fmt.Errorf("%w: %s", ErrProjectionAlreadyRegistered, def.Name())
			}
		}
		ds.projections = append(ds.projections, def)
		ds.logger.Info("registered inline projection", "name", def.Name(), "document", def.DocumentType())
	}
	return nil
}

// registeredProjections returns a stable snapshot of the definitions.
func (ds *DocumentStore) registeredProjections() []*Definition {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	defs := make([]*Definition, len(ds.projections))
	copy(defs, ds.projections)
	return defs
}

// NewSession opens a session owning its own backend transaction. The caller
// must finish it with SaveChanges and/or Close.
func (ds *DocumentStore) NewSession(ctx context.Context) (*Session, error) {
	tx, err := ds.adapter.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("stoat: failed to begin transaction: %w", err)
	}
	return &Session{store: ds, tx: tx, owned: true}, nil
}

// SessionWithTx opens a session that joins a caller-supplied transaction.
// SaveChanges flushes through the transaction but never commits it; the
// caller stays in charge of commit and rollback.
func (ds *DocumentStore) SessionWithTx(tx adapters.Tx) *Session {
	return &Session{store: ds, tx: tx, owned: false}
}

// AppendEvents appends events to a stream within a store-managed
// transaction: it opens a session, appends, saves and closes. All inline
// projections for the events are durably reflected before it returns.
func (ds *DocumentStore) AppendEvents(ctx context.Context, streamID string, events []any, opts ...AppendOption) error {
	session, err := ds.NewSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close(ctx) }()

	if err := session.AppendWithOptions(streamID, events, opts...); err != nil {
		return err
	}
	return session.SaveChanges(ctx)
}

// LoadDocument returns the committed document of the given type under key.
// Returns ErrNotFound on a miss.
func (ds *DocumentStore) LoadDocument(ctx context.Context, docType, key string) (any, error) {
	data, err := ds.adapter.GetDocument(ctx, docType, key)
	if err != nil {
		if errors.Is(err, adapters.ErrDocumentNotFound) {
			return nil, fmt.Errorf("%w: %s %q", ErrNotFound, docType, key)
		}
		return nil, err
	}
	return ds.serializer.Deserialize(data, docType)
}

// QueryDocuments returns all committed documents of a type matching the
// predicate, in key order. A nil predicate matches everything. An empty
// result is valid, not an error.
func (ds *DocumentStore) QueryDocuments(ctx context.Context, docType string, predicate func(doc any) bool) ([]any, error) {
	records, err := ds.adapter.ListDocuments(ctx, docType)
	if err != nil {
		return nil, err
	}

	docs := make([]any, 0, len(records))
	for _, rec := range records {
		doc, err := ds.serializer.Deserialize(rec.Data, docType)
		if err != nil {
			return nil, err
		}
		if predicate == nil || predicate(doc) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// LoadEvents returns all committed events of a stream, deserialized.
func (ds *DocumentStore) LoadEvents(ctx context.Context, streamID string) ([]Event, error) {
	return ds.LoadEventsFrom(ctx, streamID, 0)
}

// LoadEventsFrom returns committed events with Version > fromVersion.
func (ds *DocumentStore) LoadEventsFrom(ctx context.Context, streamID string, fromVersion int64) ([]Event, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	stored, err := ds.adapter.LoadEvents(ctx, streamID, fromVersion)
	if err != nil {
		return nil, err
	}

	events := make([]Event, len(stored))
	for i, s := range stored {
		data, err := ds.serializer.Deserialize(s.Data, s.Type)
		if err != nil {
			return nil, fmt.Errorf("stoat: failed to deserialize event %d: %w", i, err)
		}
		events[i] = EventFromStored(storedEventFromAdapter(s), data)
	}
	return events, nil
}

// GetStreamInfo returns metadata about a stream.
func (ds *DocumentStore) GetStreamInfo(ctx context.Context, streamID string) (*StreamInfo, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	info, err := ds.adapter.GetStreamInfo(ctx, streamID)
	if err != nil {
		return nil, err
	}
	converted := streamInfoFromAdapter(*info)
	return &converted, nil
}

// ListStreams returns metadata for every stream, ordered by stream ID.
func (ds *DocumentStore) ListStreams(ctx context.Context) ([]StreamInfo, error) {
	infos, err := ds.adapter.ListStreams(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]StreamInfo, len(infos))
	for i, info := range infos {
		out[i] = streamInfoFromAdapter(info)
	}
	return out, nil
}

// GetLastPosition returns the global position of the last committed event.
func (ds *DocumentStore) GetLastPosition(ctx context.Context) (uint64, error) {
	return ds.adapter.GetLastPosition(ctx)
}

// Initialize sets up the backing storage schema.
func (ds *DocumentStore) Initialize(ctx context.Context) error {
	return ds.adapter.Initialize(ctx)
}

// Close releases resources held by the store.
func (ds *DocumentStore) Close() error {
	return ds.adapter.Close()
}
