package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFillsPayload(t *testing.T) {
	e := New(TypeTurnStarted, "s1", nil)

	assert.Equal(t, TypeTurnStarted, e.EventType())
	assert.Equal(t, "s1", e.Session())
	assert.NotNil(t, e.Payload())
	assert.False(t, e.Timestamp().IsZero())
}

func TestFanoutAndRecorder(t *testing.T) {
	a := NewRecorder()
	b := NewRecorder()
	fan := Fanout{a, nil, b}

	fan.Emit(New(TypeModeChanged, "s1", map[string]interface{}{"mode": "chat"}))
	fan.Emit(New(TypeTurnFailed, "s1", nil))

	assert.Len(t, a.Events(), 2)
	assert.Equal(t, 1, b.Count(TypeModeChanged))
	assert.Equal(t, "chat", b.OfType(TypeModeChanged)[0].Payload()["mode"])

	a.Reset()
	assert.Empty(t, a.Events())
}
