package nats

import (
	"testing"
	"time"

	"mindful-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeCarriesSessionAndType(t *testing.T) {
	e := events.New(events.TypeTurnResolved, "s1", map[string]interface{}{"realm": "Anxiety"})

	data, err := Encode(e)
	require.NoError(t, err)
	got, err := Decode(Subject(events.TypeTurnResolved), data)
	require.NoError(t, err)

	assert.Equal(t, events.TypeTurnResolved, got.EventType())
	assert.Equal(t, "s1", got.Session())
	assert.Equal(t, "Anxiety", got.Payload()["realm"])
	assert.WithinDuration(t, e.Timestamp(), got.Timestamp(), time.Millisecond)
}

func TestDecodeFallsBackToSubject(t *testing.T) {
	got, err := Decode("events.TURN_FAILED", []byte(`{"session_id":"s2"}`))

	require.NoError(t, err)
	assert.Equal(t, events.TypeTurnFailed, got.EventType())
	assert.NotNil(t, got.Payload())
	assert.False(t, got.Timestamp().IsZero())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("events.X", []byte("not json"))
	assert.Error(t, err)
}
