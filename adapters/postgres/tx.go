package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/weaselworks/go-stoat/adapters"
)

var _ adapters.Tx = (*tx)(nil)

// tx is a database transaction scoped to one schema. Version checks take a
// row lock on the stream, so two concurrent appends to the same stream
// serialize at the database instead of racing.
type tx struct {
	tx     *sql.Tx
	schema string
	done   bool
}

// AppendEvents appends events to a stream after checking the expected
// version under a row lock.
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

	err := t.tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT version FROM %s.streams
		WHERE stream_id = $1
		FOR UPDATE`, t.schema), streamID).Scan(&currentVersion)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		streamExists = false
		currentVersion = 0
	case err != nil:
		return nil, fmt.Errorf("stoat/postgres: failed to get stream version: %w", err)
	default:
		streamExists = true
	}

	if err := adapters.CheckVersion(streamID, expectedVersion, currentVersion, streamExists); err != nil {
		return nil, err
	}

	if !streamExists {
		_, err = t.tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s.streams (stream_id, version)
			VALUES ($1, 0)`, t.schema), streamID)
		if err != nil {
			return nil, fmt.Errorf("stoat/postgres: failed to create stream: %w", err)
		}
	}

	stored := make([]adapters.StoredEvent, len(events))
	for i, event := range events {
		currentVersion++

		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			return nil, fmt.Errorf("stoat/postgres: failed to marshal metadata: %w", err)
		}

		var globalPosition uint64
		var eventID string
		var timestamp time.Time

		err = t.tx.QueryRowContext(ctx, fmt.Sprintf(`
			INSERT INTO %s.events (stream_id, version, event_type, data, metadata)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING global_position, event_id, timestamp`, t.schema),
			streamID, currentVersion, event.Type, event.Data, metadataJSON,
		).Scan(&globalPosition, &eventID, &timestamp)
		if err != nil {
			return nil, fmt.Errorf("stoat/postgres: failed to insert event: %w", err)
		}

		stored[i] = adapters.StoredEvent{
			ID:             eventID,
			StreamID:       streamID,
			Type:           event.Type,
			Data:           event.Data,
			Metadata:       event.Metadata,
			Version:        currentVersion,
			GlobalPosition: globalPosition,
			Timestamp:      timestamp,
		}
	}

	_, err = t.tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s.streams
		SET version = $1, updated_at = NOW()
		WHERE stream_id = $2`, t.schema), currentVersion, streamID)
	if err != nil {
		return nil, fmt.Errorf("stoat/postgres: failed to update stream version: %w", err)
	}

	return stored, nil
}

// LoadEvents returns the transaction's view of a stream, including events
// appended earlier in this transaction.
func (t *tx) LoadEvents(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	if t.done {
		return nil, adapters.ErrTxDone
	}
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}
	return loadEvents(ctx, t.tx, t.schema, streamID, fromVersion)
}

// GetDocument returns the transaction's view of a document. The read takes
// a transaction-scoped lock on the key, so two transactions racing through a
// read-modify-write cycle on the same document serialize instead of the
// second overwriting the first. The advisory lock also covers keys with no
// row yet, where FOR UPDATE alone has nothing to lock.
func (t *tx) GetDocument(ctx context.Context, docType, key string) ([]byte, error) {
	if t.done {
		return nil, adapters.ErrTxDone
	}

	_, err := t.tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, docType, key)
	if err != nil {
		return nil, fmt.Errorf("stoat/postgres: failed to lock document key: %w", err)
	}

	var data []byte
	err = t.tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT data FROM %s.documents
		WHERE doc_type = $1 AND key = $2
		FOR UPDATE`, t.schema), docType, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stoat/postgres: failed to get document: %w", err)
	}
	return data, nil
}

// UpsertDocument writes a document within the transaction.
func (t *tx) UpsertDocument(ctx context.Context, docType, key string, data []byte) error {
	if t.done {
		return adapters.ErrTxDone
	}

	_, err := t.tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.documents (doc_type, key, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (doc_type, key)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`, t.schema),
		docType, key, data)
	if err != nil {
		return fmt.Errorf("stoat/postgres: failed to upsert document: %w", err)
	}
	return nil
}

// Commit commits the transaction.
func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return adapters.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("stoat/postgres: failed to commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction.
func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return adapters.ErrTxDone
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("stoat/postgres: failed to rollback: %w", err)
	}
	return nil
}
