package nats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mindful-be/pkg/events"
)

const (
	StreamName    = "EVENTS"
	SubjectPrefix = "events."
)

// envelope is the wire form of an event on the stream. The payload alone
// does not say which session or event type it belongs to.
type envelope struct {
	Type       string                 `json:"type"`
	SessionID  string                 `json:"session_id"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Subject returns the subject an event type is published under.
func Subject(eventType string) string {
	return SubjectPrefix + eventType
}

func Encode(event events.Event) ([]byte, error) {
	data, err := json.Marshal(envelope{
		Type:       event.EventType(),
		SessionID:  event.Session(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return data, nil
}

// Decode rebuilds an event. The subject supplies the type when the envelope
// does not carry one.
func Decode(subject string, data []byte) (events.BaseEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.BaseEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if env.Type == "" {
		env.Type = strings.TrimPrefix(subject, SubjectPrefix)
	}
	if env.Data == nil {
		env.Data = map[string]interface{}{}
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now()
	}
	return events.BaseEvent{
		Type:       env.Type,
		SessionID:  env.SessionID,
		Data:       env.Data,
		OccurredAt: env.OccurredAt,
	}, nil
}
