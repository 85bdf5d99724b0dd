package events

import (
	"sync"
	"time"
)

// Event defines the contract for all companion events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "TURN_RESOLVED").
	EventType() string

	// Session returns the companion session the event belongs to.
	Session() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	TypeSequencerStateChanged = "SEQUENCER_STATE_CHANGED"
	TypeThoughtUpdated        = "THOUGHT_UPDATED"
	TypeTurnStarted           = "TURN_STARTED"
	TypeTurnResolved          = "TURN_RESOLVED"
	TypeTurnFailed            = "TURN_FAILED"
	TypeEffectTriggered       = "EFFECT_TRIGGERED"
	TypeChatMessageAppended   = "CHAT_MESSAGE_APPENDED"
	TypeModeChanged           = "MODE_CHANGED"
	TypeLiveStateChanged      = "LIVE_STATE_CHANGED"
	TypeLiveAudio             = "LIVE_AUDIO"
	TypeSpeechReady           = "SPEECH_READY"
	TypeSpeechFallback        = "SPEECH_FALLBACK"
)

type BaseEvent struct {
	Type       string
	SessionID  string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func New(eventType, sessionID string, data map[string]interface{}) BaseEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return BaseEvent{
		Type:       eventType,
		SessionID:  sessionID,
		Data:       data,
		OccurredAt: time.Now(),
	}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Session() string {
	return e.SessionID
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Emitter receives events from the orchestrator components. Implementations
// must not block for long: they are called from timer goroutines.
type Emitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a plain function to Emitter.
type EmitterFunc func(event Event)

func (f EmitterFunc) Emit(event Event) {
	f(event)
}

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})

// Fanout forwards each event to every target in order.
type Fanout []Emitter

func (f Fanout) Emit(event Event) {
	for _, target := range f {
		if target != nil {
			target.Emit(event)
		}
	}
}

// Recorder keeps every emitted event in memory. Used by tests and the CLI.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events with the given type, oldest first.
func (r *Recorder) OfType(eventType string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Count(eventType string) int {
	return len(r.OfType(eventType))
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
