// Package memory provides an in-memory stoat backend with transactional
// staging. It is intended for tests and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/weaselworks/go-stoat/adapters"
)

// Version constants re-exported from the adapters package for convenience.
const (
	AnyVersion   = adapters.AnyVersion
	NoStream     = adapters.NoStream
	StreamExists = adapters.StreamExists
)

var _ adapters.Adapter = (*Adapter)(nil)

// Adapter is an in-memory implementation of adapters.Adapter.
//
// Transactions stage their writes privately and validate stream versions
// and document revisions again at commit time, so concurrent writers to the
// same stream or the same document resolve through optimistic concurrency
// rather than losing updates.
type Adapter struct {
	mu             sync.Mutex
	streams        map[string]*streamState
	documents      map[string]map[string]adapters.DocumentRecord
	docRevisions   map[string]map[string]uint64
	globalPosition uint64
	closed         bool
}

type streamState struct {
	info   adapters.StreamInfo
	events []adapters.StoredEvent
}

// NewAdapter creates a new in-memory adapter.
func NewAdapter() *Adapter {
	return &Adapter{
		streams:      make(map[string]*streamState),
		documents:    make(map[string]map[string]adapters.DocumentRecord),
		docRevisions: make(map[string]map[string]uint64),
	}
}

// Initialize is a no-op for the memory adapter.
func (a *Adapter) Initialize(ctx context.Context) error {
	return nil
}

// Close marks the adapter closed. Subsequent operations fail with
// ErrAdapterClosed.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// BeginTx starts a staged transaction.
func (a *Adapter) BeginTx(ctx context.Context) (adapters.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	return &tx{
		adapter:      a,
		baseVersions: make(map[string]int64),
		staged:       make(map[string][]adapters.StoredEvent),
		docs:         make(map[string]map[string][]byte),
		docBase:      make(map[docRef]uint64),
	}, nil
}

// LoadEvents returns committed events of a stream.
func (a *Adapter) LoadEvents(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}

	return a.loadLocked(streamID, fromVersion), nil
}

// loadLocked copies matching committed events. Callers must hold a.mu.
func (a *Adapter) loadLocked(streamID string, fromVersion int64) []adapters.StoredEvent {
	stream, ok := a.streams[streamID]
	if !ok {
		return []adapters.StoredEvent{}
	}

	events := make([]adapters.StoredEvent, 0, len(stream.events))
	for _, event := range stream.events {
		if event.Version > fromVersion {
			events = append(events, event)
		}
	}
	return events
}

// GetStreamInfo returns metadata about a committed stream.
func (a *Adapter) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	stream, ok := a.streams[streamID]
	if !ok {
		return nil, adapters.ErrStreamNotFound
	}

	info := stream.info
	return &info, nil
}

// ListStreams returns info for all committed streams in stream ID order.
func (a *Adapter) ListStreams(ctx context.Context) ([]adapters.StreamInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	infos := make([]adapters.StreamInfo, 0, len(a.streams))
	for _, stream := range a.streams {
		infos = append(infos, stream.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].StreamID < infos[j].StreamID })
	return infos, nil
}

// GetLastPosition returns the last committed global position.
func (a *Adapter) GetLastPosition(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, adapters.ErrAdapterClosed
	}
	return a.globalPosition, nil
}

// GetDocument returns a committed document.
func (a *Adapter) GetDocument(ctx context.Context, docType, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	rec, ok := a.documents[docType][key]
	if !ok {
		return nil, adapters.ErrDocumentNotFound
	}
	data := make([]byte, len(rec.Data))
	copy(data, rec.Data)
	return data, nil
}

// ListDocuments returns all committed documents of a type in key order.
func (a *Adapter) ListDocuments(ctx context.Context, docType string) ([]adapters.DocumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	byKey := a.documents[docType]
	records := make([]adapters.DocumentRecord, 0, len(byKey))
	for _, rec := range byKey {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

// tx stages writes against a snapshot of stream versions and document
// revisions. Commit re-checks that every touched stream is still at its base
// version and that no document this transaction read or wrote has been
// rewritten by another committed transaction, so two streams racing to fold
// into one document cannot lose either update.
type tx struct {
	adapter      *Adapter
	baseVersions map[string]int64                 // committed version at first touch
	streamOrder  []string                         // append order, for stable commit
	staged       map[string][]adapters.StoredEvent // provisional events per stream
	docs         map[string]map[string][]byte     // docType -> key -> data
	docOrder     []docRef
	docBase      map[docRef]uint64 // committed document revision at first touch
	done         bool
	mu           sync.Mutex
}

type docRef struct {
	docType string
	key     string
}

func (t *tx) AppendEvents(ctx context.Context, streamID string, events []adapters.EventRecord, expectedVersion int64) ([]adapters.StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, adapters.ErrTxDone
	}
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}
	if len(events) == 0 {
		return nil, adapters.ErrNoEvents
	}

	base, touched := t.baseVersions[streamID]
	if !touched {
		t.adapter.mu.Lock()
		if t.adapter.closed {
			t.adapter.mu.Unlock()
			return nil, adapters.ErrAdapterClosed
		}
		if stream, ok := t.adapter.streams[streamID]; ok {
			base = stream.info.Version
		}
		t.adapter.mu.Unlock()
	}

	current := base + int64(len(t.staged[streamID]))
	exists := current > 0
	if err := adapters.CheckVersion(streamID, expectedVersion, current, exists); err != nil {
		return nil, err
	}

	if !touched {
		t.baseVersions[streamID] = base
		t.streamOrder = append(t.streamOrder, streamID)
	}

	now := time.Now()
	stored := make([]adapters.StoredEvent, len(events))
	for i, event := range events {
		current++
		stored[i] = adapters.StoredEvent{
			ID:        uuid.New().String(),
			StreamID:  streamID,
			Type:      event.Type,
			Data:      event.Data,
			Metadata:  event.Metadata,
			Version:   current,
			Timestamp: now,
		}
	}
	t.staged[streamID] = append(t.staged[streamID], stored...)
	return stored, nil
}

func (t *tx) LoadEvents(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, adapters.ErrTxDone
	}
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}

	t.adapter.mu.Lock()
	events := t.adapter.loadLocked(streamID, fromVersion)
	t.adapter.mu.Unlock()

	for _, event := range t.staged[streamID] {
		if event.Version > fromVersion {
			events = append(events, event)
		}
	}
	return events, nil
}

func (t *tx) GetDocument(ctx context.Context, docType, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, adapters.ErrTxDone
	}

	if data, ok := t.docs[docType][key]; ok {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	a := t.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	// Record the committed revision at first touch, a miss included, so a
	// concurrent creator of the same key conflicts at commit too.
	ref := docRef{docType: docType, key: key}
	if _, touched := t.docBase[ref]; !touched {
		t.docBase[ref] = a.docRevisions[docType][key]
	}

	rec, ok := a.documents[docType][key]
	if !ok {
		return nil, adapters.ErrDocumentNotFound
	}
	data := make([]byte, len(rec.Data))
	copy(data, rec.Data)
	return data, nil
}

func (t *tx) UpsertDocument(ctx context.Context, docType, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return adapters.ErrTxDone
	}

	ref := docRef{docType: docType, key: key}
	if _, touched := t.docBase[ref]; !touched {
		t.adapter.mu.Lock()
		t.docBase[ref] = t.adapter.docRevisions[docType][key]
		t.adapter.mu.Unlock()
	}

	if _, ok := t.docs[docType]; !ok {
		t.docs[docType] = make(map[string][]byte)
	}
	if _, ok := t.docs[docType][key]; !ok {
		t.docOrder = append(t.docOrder, ref)
	}
	staged := make([]byte, len(data))
	copy(staged, data)
	t.docs[docType][key] = staged
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return adapters.ErrTxDone
	}
	t.done = true

	a := t.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return adapters.ErrAdapterClosed
	}

	// Validate every touched stream before mutating anything.
	for streamID, base := range t.baseVersions {
		var current int64
		if stream, ok := a.streams[streamID]; ok {
			current = stream.info.Version
		}
		if current != base {
			return adapters.NewConcurrencyError(streamID, base, current)
		}
	}

	// A document this transaction worked from must still be at the revision
	// it read; otherwise its writes would overwrite a concurrent commit.
	for ref, base := range t.docBase {
		if current := a.docRevisions[ref.docType][ref.key]; current != base {
			return fmt.Errorf("%w: document %s %q was modified by a concurrent transaction",
				adapters.ErrConcurrencyConflict, ref.docType, ref.key)
		}
	}

	now := time.Now()
	for _, streamID := range t.streamOrder {
		stream, ok := a.streams[streamID]
		if !ok {
			stream = &streamState{
				info: adapters.StreamInfo{StreamID: streamID, CreatedAt: now},
			}
			a.streams[streamID] = stream
		}
		for _, event := range t.staged[streamID] {
			a.globalPosition++
			event.GlobalPosition = a.globalPosition
			stream.events = append(stream.events, event)
		}
		stream.info.Version = stream.events[len(stream.events)-1].Version
		stream.info.EventCount = int64(len(stream.events))
		stream.info.UpdatedAt = now
	}

	for _, ref := range t.docOrder {
		if _, ok := a.documents[ref.docType]; !ok {
			a.documents[ref.docType] = make(map[string]adapters.DocumentRecord)
		}
		if _, ok := a.docRevisions[ref.docType]; !ok {
			a.docRevisions[ref.docType] = make(map[string]uint64)
		}
		a.docRevisions[ref.docType][ref.key]++
		a.documents[ref.docType][ref.key] = adapters.DocumentRecord{
			DocType:   ref.docType,
			Key:       ref.key,
			Data:      t.docs[ref.docType][ref.key],
			UpdatedAt: now,
		}
	}

	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return adapters.ErrTxDone
	}
	t.done = true
	t.staged = nil
	t.docs = nil
	t.docBase = nil
	return nil
}
