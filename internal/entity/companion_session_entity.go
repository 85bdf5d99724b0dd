package entity

import (
	"time"

	"github.com/google/uuid"
)

type CompanionSession struct {
	Id           uuid.UUID
	Language     string
	TtsEnabled   bool
	Track        string
	Mode         string
	LastActiveAt time.Time
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	DeletedAt    *time.Time
	IsDeleted    bool
}
