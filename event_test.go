package stoat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weaselworks/go-stoat"
)

func TestMetadataWithMethodsCopy(t *testing.T) {
	base := stoat.Metadata{}.WithCustom("tenant", "acme")

	derived := base.
		WithCorrelationID("corr-1").
		WithCausationID("cause-1").
		WithUserID("user-1").
		WithCustom("region", "eu")

	assert.Equal(t, "corr-1", derived.CorrelationID)
	assert.Equal(t, "cause-1", derived.CausationID)
	assert.Equal(t, "user-1", derived.UserID)
	assert.Equal(t, "acme", derived.Custom["tenant"])
	assert.Equal(t, "eu", derived.Custom["region"])

	// The original is untouched.
	assert.Empty(t, base.CorrelationID)
	assert.NotContains(t, base.Custom, "region")
}

func TestMetadataIsEmpty(t *testing.T) {
	assert.True(t, stoat.Metadata{}.IsEmpty())
	assert.False(t, stoat.Metadata{}.WithUserID("u").IsEmpty())
	assert.False(t, stoat.Metadata{}.WithCustom("k", "v").IsEmpty())
}

func TestEventDataValidate(t *testing.T) {
	valid := stoat.EventData{Type: "ThingHappened", Data: []byte(`{}`)}
	assert.NoError(t, valid.Validate())

	assert.Error(t, stoat.EventData{Data: []byte(`{}`)}.Validate())
	assert.Error(t, stoat.EventData{Type: "ThingHappened"}.Validate())
}

func TestEventFromStored(t *testing.T) {
	now := time.Now()
	stored := stoat.StoredEvent{
		ID:             "ev-1",
		StreamID:       "stream-1",
		Type:           "ThingHappened",
		Data:           []byte(`{"n":1}`),
		Version:        3,
		GlobalPosition: 17,
		Timestamp:      now,
	}

	event := stoat.EventFromStored(stored, map[string]int{"n": 1})
	assert.Equal(t, "ev-1", event.ID)
	assert.Equal(t, "stream-1", event.StreamID)
	assert.Equal(t, int64(3), event.Version)
	assert.Equal(t, uint64(17), event.GlobalPosition)
	assert.Equal(t, map[string]int{"n": 1}, event.Data)
}
