// Package sqlite provides an embedded storage adapter backed by
// modernc.org/sqlite. It suits single-process deployments and tests; the
// same transaction covers events and documents, as with postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/weaselworks/go-stoat/adapters"
)

// Version constants for optimistic concurrency control.
const (
	AnyVersion   int64 = -1
	NoStream     int64 = 0
	StreamExists int64 = -2
)

// Sentinel errors, aliased from the adapters package for errors.Is().
var (
	ErrAdapterClosed       = adapters.ErrAdapterClosed
	ErrEmptyStreamID       = adapters.ErrEmptyStreamID
	ErrNoEvents            = adapters.ErrNoEvents
	ErrConcurrencyConflict = adapters.ErrConcurrencyConflict
	ErrStreamNotFound      = adapters.ErrStreamNotFound
	ErrDocumentNotFound    = adapters.ErrDocumentNotFound
)

var _ adapters.Adapter = (*Adapter)(nil)

// Adapter is a SQLite implementation of adapters.Adapter.
type Adapter struct {
	db     *sql.DB
	closed bool
}

// NewAdapter opens a SQLite database at path. Use ":memory:" for an
// in-memory database. WAL and a busy timeout are enabled so concurrent
// readers do not starve the single writer.
func NewAdapter(path string) (*Adapter, error) {
	if path == "" {
		return nil, fmt.Errorf("stoat/sqlite: database path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("stoat/sqlite: failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; serializing through a single
	// connection avoids SQLITE_BUSY on overlapping transactions.
	db.SetMaxOpenConns(1)

	return &Adapter{db: db}, nil
}

// Initialize creates the tables if they do not exist.
func (a *Adapter) Initialize(ctx context.Context) error {
	if a.closed {
		return ErrAdapterClosed
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS streams (
			stream_id   TEXT PRIMARY KEY,
			version     INTEGER NOT NULL DEFAULT 0,
			created_at  TIMESTAMP NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			global_position INTEGER PRIMARY KEY AUTOINCREMENT,
			stream_id       TEXT NOT NULL,
			version         INTEGER NOT NULL,
			event_id        TEXT NOT NULL,
			event_type      TEXT NOT NULL,
			data            BLOB NOT NULL,
			metadata        BLOB,
			timestamp       TIMESTAMP NOT NULL,
			UNIQUE(stream_id, version)
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			doc_type    TEXT NOT NULL,
			key         TEXT NOT NULL,
			data        BLOB NOT NULL,
			updated_at  TIMESTAMP NOT NULL,
			PRIMARY KEY (doc_type, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id, version)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type)`,
	}

	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("stoat/sqlite: failed to initialize schema: %w", err)
		}
	}
	return nil
}

// BeginTx starts a database transaction.
func (a *Adapter) BeginTx(ctx context.Context) (adapters.Tx, error) {
	if a.closed {
		return nil, ErrAdapterClosed
	}

	sqlTx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("stoat/sqlite: failed to begin transaction: %w", err)
	}
	return &tx{tx: sqlTx}, nil
}

// LoadEvents returns committed events of a stream with version > fromVersion.
func (a *Adapter) LoadEvents(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	if a.closed {
		return nil, ErrAdapterClosed
	}
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}
	return loadEvents(ctx, a.db, streamID, fromVersion)
}

// GetStreamInfo returns metadata about a stream.
func (a *Adapter) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	if a.closed {
		return nil, ErrAdapterClosed
	}

	var info adapters.StreamInfo
	err := a.db.QueryRowContext(ctx, `
		SELECT stream_id, version, version, created_at, updated_at
		FROM streams
		WHERE stream_id = ?`, streamID).Scan(
		&info.StreamID,
		&info.Version,
		&info.EventCount,
		&info.CreatedAt,
		&info.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	}
	if err != nil {
		return nil, fmt.Errorf("stoat/sqlite: failed to get stream info: %w", err)
	}
	return &info, nil
}

// ListStreams returns metadata for all streams, ordered by stream ID.
func (a *Adapter) ListStreams(ctx context.Context) ([]adapters.StreamInfo, error) {
	if a.closed {
		return nil, ErrAdapterClosed
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT stream_id, version, version, created_at, updated_at
		FROM streams
		ORDER BY stream_id`)
	if err != nil {
		return nil, fmt.Errorf("stoat/sqlite: failed to list streams: %w", err)
	}
	defer rows.Close()

	var infos []adapters.StreamInfo
	for rows.Next() {
		var info adapters.StreamInfo
		if err := rows.Scan(&info.StreamID, &info.Version, &info.EventCount, &info.CreatedAt, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("stoat/sqlite: failed to scan stream: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// GetLastPosition returns the global position of the last stored event.
func (a *Adapter) GetLastPosition(ctx context.Context) (uint64, error) {
	if a.closed {
		return 0, ErrAdapterClosed
	}

	var position sql.NullInt64
	err := a.db.QueryRowContext(ctx, `SELECT MAX(global_position) FROM events`).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("stoat/sqlite: failed to get last position: %w", err)
	}
	if !position.Valid {
		return 0, nil
	}
	return uint64(position.Int64), nil
}

// GetDocument returns the committed document under (docType, key).
func (a *Adapter) GetDocument(ctx context.Context, docType, key string) ([]byte, error) {
	if a.closed {
		return nil, ErrAdapterClosed
	}
	return getDocument(ctx, a.db, docType, key)
}

// ListDocuments returns all committed documents of a type, in key order.
func (a *Adapter) ListDocuments(ctx context.Context, docType string) ([]adapters.DocumentRecord, error) {
	if a.closed {
		return nil, ErrAdapterClosed
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT doc_type, key, data, updated_at
		FROM documents
		WHERE doc_type = ?
		ORDER BY key`, docType)
	if err != nil {
		return nil, fmt.Errorf("stoat/sqlite: failed to list documents: %w", err)
	}
	defer rows.Close()

	var records []adapters.DocumentRecord
	for rows.Next() {
		var rec adapters.DocumentRecord
		if err := rows.Scan(&rec.DocType, &rec.Key, &rec.Data, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("stoat/sqlite: failed to scan document: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database.
func (a *Adapter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadEvents(ctx context.Context, q querier, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT global_position, event_id, stream_id, version, event_type, data, metadata, timestamp
		FROM events
		WHERE stream_id = ? AND version > ?
		ORDER BY version`, streamID, fromVersion)
	if err != nil {
		return nil, fmt.Errorf("stoat/sqlite: failed to load events: %w", err)
	}
	defer rows.Close()

	events := make([]adapters.StoredEvent, 0)
	for rows.Next() {
		var event adapters.StoredEvent
		var metadataJSON []byte

		err := rows.Scan(
			&event.GlobalPosition,
			&event.ID,
			&event.StreamID,
			&event.Version,
			&event.Type,
			&event.Data,
			&metadataJSON,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("stoat/sqlite: failed to scan event: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("stoat/sqlite: failed to unmarshal metadata: %w", err)
			}
		}

		events = append(events, event)
	}
	return events, rows.Err()
}

func getDocument(ctx context.Context, q querier, docType, key string) ([]byte, error) {
	var data []byte
	err := q.QueryRowContext(ctx, `
		SELECT data FROM documents
		WHERE doc_type = ? AND key = ?`, docType, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stoat/sqlite: failed to get document: %w", err)
	}
	return data, nil
}

var _ adapters.Tx = (*tx)(nil)

type tx struct {
	tx   *sql.Tx
	done bool
}

// AppendEvents appends events to a stream after checking the expected
// version. SQLite serializes writers, so no explicit row lock is needed.
func (t *tx) AppendEvents(ctx context.Context, streamID string, events []adapters.EventRecord, expectedVersion int64) ([]adapters.StoredEvent, error) {
	if t.done {
		return nil, adapters.ErrTxDone
	}
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	var currentVersion int64
	var streamExists bool

	err := t.tx.QueryRowContext(ctx, `
		SELECT version FROM streams WHERE stream_id = ?`, streamID).Scan(&currentVersion)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		streamExists = false
		currentVersion = 0
	case err != nil:
		return nil, fmt.Errorf("stoat/sqlite: failed to get stream version: %w", err)
	default:
		streamExists = true
	}

	if err := adapters.CheckVersion(streamID, expectedVersion, currentVersion, streamExists); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !streamExists {
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO streams (stream_id, version, created_at, updated_at)
			VALUES (?, 0, ?, ?)`, streamID, now, now)
		if err != nil {
			return nil, fmt.Errorf("stoat/sqlite: failed to create stream: %w", err)
		}
	}

	stored := make([]adapters.StoredEvent, len(events))
	for i, event := range events {
		currentVersion++

		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			return nil, fmt.Errorf("stoat/sqlite: failed to marshal metadata: %w", err)
		}

		eventID := uuid.NewString()
		res, err := t.tx.ExecContext(ctx, `
			INSERT INTO events (stream_id, version, event_id, event_type, data, metadata, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			streamID, currentVersion, eventID, event.Type, event.Data, metadataJSON, now)
		if err != nil {
			return nil, fmt.Errorf("stoat/sqlite: failed to insert event: %w", err)
		}

		globalPosition, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("stoat/sqlite: failed to read event position: %w", err)
		}

		stored[i] = adapters.StoredEvent{
			ID:             eventID,
			StreamID:       streamID,
			Type:           event.Type,
			Data:           event.Data,
			Metadata:       event.Metadata,
			Version:        currentVersion,
			GlobalPosition: uint64(globalPosition),
			Timestamp:      now,
		}
	}

	_, err = t.tx.ExecContext(ctx, `
		UPDATE streams SET version = ?, updated_at = ? WHERE stream_id = ?`,
		currentVersion, now, streamID)
	if err != nil {
		return nil, fmt.Errorf("stoat/sqlite: failed to update stream version: %w", err)
	}

	return stored, nil
}

func (t *tx) LoadEvents(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	if t.done {
		return nil, adapters.ErrTxDone
	}
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}
	return loadEvents(ctx, t.tx, streamID, fromVersion)
}

func (t *tx) GetDocument(ctx context.Context, docType, key string) ([]byte, error) {
	if t.done {
		return nil, adapters.ErrTxDone
	}
	return getDocument(ctx, t.tx, docType, key)
}

func (t *tx) UpsertDocument(ctx context.Context, docType, key string, data []byte) error {
	if t.done {
		return adapters.ErrTxDone
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO documents (doc_type, key, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (doc_type, key)
		DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		docType, key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("stoat/sqlite: failed to upsert document: %w", err)
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return adapters.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("stoat/sqlite: failed to commit: %w", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return adapters.ErrTxDone
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("stoat/sqlite: failed to rollback: %w", err)
	}
	return nil
}
