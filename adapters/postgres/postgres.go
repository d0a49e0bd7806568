// Package postgres provides a PostgreSQL storage adapter backed by pgx.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

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
	ErrInvalidVersion      = adapters.ErrInvalidVersion
)

var _ adapters.Adapter = (*Adapter)(nil)

// Adapter is a PostgreSQL implementation of adapters.Adapter. Events and
// documents live in one schema, so a transaction spanning both gives the
// store its same-transaction projection guarantee.
type Adapter struct {
	db     *sql.DB
	schema string
	closed bool
}

// Option configures the adapter.
type Option func(*Adapter)

// WithSchema sets the database schema name.
func WithSchema(schema string) Option {
	return func(a *Adapter) {
		a.schema = schema
	}
}

// WithMaxConnections sets the maximum number of open connections.
func WithMaxConnections(n int) Option {
	return func(a *Adapter) {
		a.db.SetMaxOpenConns(n)
	}
}

// WithConnectionMaxLifetime sets the maximum connection lifetime.
func WithConnectionMaxLifetime(d time.Duration) Option {
	return func(a *Adapter) {
		a.db.SetConnMaxLifetime(d)
	}
}

// NewAdapter opens a PostgreSQL adapter for the given connection string.
func NewAdapter(connStr string, opts ...Option) (*Adapter, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("stoat/postgres: failed to open database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		schema: "stoat",
	}

	for _, opt := range opts {
		opt(adapter)
	}

	return adapter, nil
}

// NewAdapterWithDB wraps an existing database connection.
func NewAdapterWithDB(db *sql.DB, opts ...Option) *Adapter {
	adapter := &Adapter{
		db:     db,
		schema: "stoat",
	}

	for _, opt := range opts {
		opt(adapter)
	}

	return adapter
}

// Initialize creates the schema and tables if they do not exist.
func (a *Adapter) Initialize(ctx context.Context) error {
	if a.closed {
		return ErrAdapterClosed
	}

	statements := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, a.schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.streams (
				stream_id   VARCHAR(500) PRIMARY KEY,
				version     BIGINT NOT NULL DEFAULT 0,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, a.schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.events (
				global_position BIGSERIAL PRIMARY KEY,
				stream_id       VARCHAR(500) NOT NULL,
				version         BIGINT NOT NULL,
				event_id        UUID NOT NULL DEFAULT gen_random_uuid(),
				event_type      VARCHAR(500) NOT NULL,
				data            JSONB NOT NULL,
				metadata        JSONB,
				timestamp       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE(stream_id, version)
			)`, a.schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.documents (
				doc_type    VARCHAR(500) NOT NULL,
				key         VARCHAR(500) NOT NULL,
				data        JSONB NOT NULL,
				updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (doc_type, key)
			)`, a.schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_events_stream ON %s.events(stream_id, version)`, a.schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_events_type ON %s.events(event_type)`, a.schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_documents_type ON %s.documents(doc_type)`, a.schema),
	}

	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("stoat/postgres: failed to initialize schema: %w", err)
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
		return nil, fmt.Errorf("stoat/postgres: failed to begin transaction: %w", err)
	}
	return &tx{tx: sqlTx, schema: a.schema}, nil
}

// LoadEvents returns committed events of a stream with version > fromVersion.
func (a *Adapter) LoadEvents(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	if a.closed {
		return nil, ErrAdapterClosed
	}
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}
	return loadEvents(ctx, a.db, a.schema, streamID, fromVersion)
}

// GetStreamInfo returns metadata about a stream.
func (a *Adapter) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	if a.closed {
		return nil, ErrAdapterClosed
	}

	var info adapters.StreamInfo
	err := a.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT s.stream_id, s.version, s.version, s.created_at, s.updated_at
		FROM %s.streams s
		WHERE s.stream_id = $1`, a.schema), streamID).Scan(
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
		return nil, fmt.Errorf("stoat/postgres: failed to get stream info: %w", err)
	}
	return &info, nil
}

// ListStreams returns metadata for all streams, ordered by stream ID.
func (a *Adapter) ListStreams(ctx context.Context) ([]adapters.StreamInfo, error) {
	if a.closed {
		return nil, ErrAdapterClosed
	}

	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT stream_id, version, version, created_at, updated_at
		FROM %s.streams
		ORDER BY stream_id`, a.schema))
	if err != nil {
		return nil, fmt.Errorf("stoat/postgres: failed to list streams: %w", err)
	}
	defer rows.Close()

	var infos []adapters.StreamInfo
	for rows.Next() {
		var info adapters.StreamInfo
		if err := rows.Scan(&info.StreamID, &info.Version, &info.EventCount, &info.CreatedAt, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("stoat/postgres: failed to scan stream: %w", err)
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
	err := a.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT MAX(global_position) FROM %s.events`, a.schema)).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("stoat/postgres: failed to get last position: %w", err)
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
	return getDocument(ctx, a.db, a.schema, docType, key)
}

// ListDocuments returns all committed documents of a type, in key order.
func (a *Adapter) ListDocuments(ctx context.Context, docType string) ([]adapters.DocumentRecord, error) {
	if a.closed {
		return nil, ErrAdapterClosed
	}

	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT doc_type, key, data, updated_at
		FROM %s.documents
		WHERE doc_type = $1
		ORDER BY key`, a.schema), docType)
	if err != nil {
		return nil, fmt.Errorf("stoat/postgres: failed to list documents: %w", err)
	}
	defer rows.Close()

	var records []adapters.DocumentRecord
	for rows.Next() {
		var rec adapters.DocumentRecord
		if err := rows.Scan(&rec.DocType, &rec.Key, &rec.Data, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("stoat/postgres: failed to scan document: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database connection.
func (a *Adapter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.db.Close()
}

// querier covers both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadEvents(ctx context.Context, q querier, schema, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT global_position, event_id, stream_id, version, event_type, data, metadata, timestamp
		FROM %s.events
		WHERE stream_id = $1 AND version > $2
		ORDER BY version`, schema), streamID, fromVersion)
	if err != nil {
		return nil, fmt.Errorf("stoat/postgres: failed to load events: %w", err)
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
			return nil, fmt.Errorf("stoat/postgres: failed to scan event: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("stoat/postgres: failed to unmarshal metadata: %w", err)
			}
		}

		events = append(events, event)
	}
	return events, rows.Err()
}

func getDocument(ctx context.Context, q querier, schema, docType, key string) ([]byte, error) {
	var data []byte
	err := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT data FROM %s.documents
		WHERE doc_type = $1 AND key = $2`, schema), docType, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stoat/postgres: failed to get document: %w", err)
	}
	return data, nil
}
