package msgpack_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaselworks/go-stoat"
	"github.com/weaselworks/go-stoat/adapters/memory"
	"github.com/weaselworks/go-stoat/serializer/msgpack"
)

type pointScored struct {
	PlayerID string
	Points   int
}

func TestSerializeRoundTrip(t *testing.T) {
	s := msgpack.NewSerializer()
	s.RegisterAll(pointScored{})

	data, err := s.Serialize(pointScored{PlayerID: "p1", Points: 7})
	require.NoError(t, err)

	value, err := s.Deserialize(data, "pointScored")
	require.NoError(t, err)

	event, ok := value.(pointScored)
	require.True(t, ok)
	assert.Equal(t, "p1", event.PlayerID)
	assert.Equal(t, 7, event.Points)
}

func TestDeserializeUnregisteredTypeFails(t *testing.T) {
	s := msgpack.NewSerializer()

	_, err := s.Deserialize([]byte{0x80}, "Mystery")
	assert.ErrorIs(t, err, stoat.ErrTypeNotRegistered)
}

func TestSerializeNilFails(t *testing.T) {
	s := msgpack.NewSerializer()

	_, err := s.Serialize(nil)
	assert.ErrorIs(t, err, stoat.ErrSerializationFailed)
}

func TestStoreRoundTripWithMsgpack(t *testing.T) {
	store := stoat.New(memory.NewAdapter(), stoat.WithSerializer(msgpack.NewSerializer()))
	store.RegisterEvents(pointScored{})
	ctx := context.Background()

	err := store.AppendEvents(ctx, "game-1", []any{pointScored{PlayerID: "p1", Points: 3}})
	require.NoError(t, err)

	events, err := store.LoadEvents(ctx, "game-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, pointScored{PlayerID: "p1", Points: 3}, events[0].Data)
}
