package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatCitation is a grounding source attached to a model reply. Position
// keeps the order the provider returned.
type ChatCitation struct {
	Id            uuid.UUID
	ChatMessageId uuid.UUID
	Position      int
	Uri           string
	Title         string
	CreatedAt     time.Time
}
