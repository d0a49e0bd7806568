package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaselworks/go-stoat/adapters"
	"github.com/weaselworks/go-stoat/adapters/sqlite"
)

func openTestAdapter(t *testing.T) *sqlite.Adapter {
	t.Helper()

	adapter, err := sqlite.NewAdapter(filepath.Join(t.TempDir(), "stoat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	require.NoError(t, adapter.Initialize(context.Background()))
	return adapter
}

func record(eventType, payload string) adapters.EventRecord {
	return adapters.EventRecord{Type: eventType, Data: []byte(payload)}
}

func TestAppendAssignsContiguousVersions(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	tx, err := adapter.BeginTx(ctx)
	require.NoError(t, err)

	stored, err := tx.AppendEvents(ctx, "stream-1", []adapters.EventRecord{
		record("ThingHappened", `{"n":1}`),
		record("ThingHappened", `{"n":2}`),
		record("ThingHappened", `{"n":3}`),
	}, sqlite.NoStream)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	require.Len(t, stored, 3)
	for i, ev := range stored {
		assert.Equal(t, int64(i+1), ev.Version)
		assert.NotEmpty(t, ev.ID)
	}

	events, err := adapter.LoadEvents(ctx, "stream-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.JSONEq(t, `{"n":2}`, string(events[1].Data))
}

func TestTransactionSeesOwnWrites(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	tx, err := adapter.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.AppendEvents(ctx, "stream-1", []adapters.EventRecord{record("ThingHappened", `{}`)}, sqlite.AnyVersion)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertDocument(ctx, "Thing", "stream-1", []byte(`{"v":1}`)))

	events, err := tx.LoadEvents(ctx, "stream-1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	data, err := tx.GetDocument(ctx, "Thing", "stream-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(data))
}

func TestRollbackDiscardsEventsAndDocuments(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	tx, err := adapter.BeginTx(ctx)
	require.NoError(t, err)

	_, err = tx.AppendEvents(ctx, "stream-1", []adapters.EventRecord{record("ThingHappened", `{}`)}, sqlite.AnyVersion)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertDocument(ctx, "Thing", "stream-1", []byte(`{}`)))
	require.NoError(t, tx.Rollback(ctx))

	events, err := adapter.LoadEvents(ctx, "stream-1", 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = adapter.GetDocument(ctx, "Thing", "stream-1")
	assert.ErrorIs(t, err, sqlite.ErrDocumentNotFound)

	// A finished transaction rejects further use.
	_, err = tx.LoadEvents(ctx, "stream-1", 0)
	assert.ErrorIs(t, err, adapters.ErrTxDone)
}

func TestExpectedVersionConflicts(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	tx, err := adapter.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.AppendEvents(ctx, "stream-1", []adapters.EventRecord{record("ThingHappened", `{}`)}, sqlite.NoStream)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	cases := []struct {
		name     string
		expected int64
		wantErr  error
	}{
		{"no-stream on existing stream", sqlite.NoStream, sqlite.ErrConcurrencyConflict},
		{"stale exact version", 5, sqlite.ErrConcurrencyConflict},
		{"stream-exists on missing stream", sqlite.StreamExists, sqlite.ErrConcurrencyConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx, err := adapter.BeginTx(ctx)
			require.NoError(t, err)
			defer func() { _ = tx.Rollback(ctx) }()

			streamID := "stream-1"
			if tc.expected == sqlite.StreamExists {
				streamID = "missing"
			}
			_, err = tx.AppendEvents(ctx, streamID, []adapters.EventRecord{record("ThingHappened", `{}`)}, tc.expected)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestStreamInfoAndListing(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	for _, streamID := range []string{"b-stream", "a-stream"} {
		tx, err := adapter.BeginTx(ctx)
		require.NoError(t, err)
		_, err = tx.AppendEvents(ctx, streamID, []adapters.EventRecord{
			record("ThingHappened", `{}`),
			record("ThingHappened", `{}`),
		}, sqlite.NoStream)
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
	}

	info, err := adapter.GetStreamInfo(ctx, "a-stream")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Version)

	infos, err := adapter.ListStreams(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a-stream", infos[0].StreamID)
	assert.Equal(t, "b-stream", infos[1].StreamID)

	position, err := adapter.GetLastPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), position)
}

func TestDocumentListingOrdersByKey(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	tx, err := adapter.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertDocument(ctx, "Widget", "b", []byte(`{"v":1}`)))
	require.NoError(t, tx.UpsertDocument(ctx, "Widget", "a", []byte(`{"v":2}`)))
	require.NoError(t, tx.UpsertDocument(ctx, "Other", "z", []byte(`{"v":3}`)))
	require.NoError(t, tx.UpsertDocument(ctx, "Widget", "b", []byte(`{"v":9}`)))
	require.NoError(t, tx.Commit(ctx))

	records, err := adapter.ListDocuments(ctx, "Widget")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Key)
	assert.Equal(t, "b", records[1].Key)
	assert.JSONEq(t, `{"v":9}`, string(records[1].Data))
}

func TestClosedAdapterRejectsOperations(t *testing.T) {
	adapter := openTestAdapter(t)
	require.NoError(t, adapter.Close())

	_, err := adapter.BeginTx(context.Background())
	assert.ErrorIs(t, err, sqlite.ErrAdapterClosed)

	_, err = adapter.LoadEvents(context.Background(), "stream-1", 0)
	assert.ErrorIs(t, err, sqlite.ErrAdapterClosed)
}
