package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id                 uuid.UUID
	CompanionSessionId uuid.UUID
	Role               string
	Text               string
	HasImage           bool
	CreatedAt          time.Time
	DeletedAt          *time.Time
	IsDeleted          bool

	Citations []*ChatCitation
}
