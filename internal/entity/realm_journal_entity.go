package entity

import (
	"time"

	"github.com/google/uuid"
)

// RealmJournalEntry records one resolved guidance turn.
type RealmJournalEntry struct {
	Id                 uuid.UUID
	CompanionSessionId uuid.UUID
	Realm              string
	ActionIntent       string
	Urgency            string
	Advice             string
	Fallback           bool
	Context            []string
	CreatedAt          time.Time
}
