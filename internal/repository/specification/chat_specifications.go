package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByCompanionSessionID struct {
	SessionID uuid.UUID
}

func (s ByCompanionSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("companion_session_id = ?", s.SessionID)
}

// WithCitations preloads citations in provider order.
type WithCitations struct{}

func (s WithCitations) Apply(db *gorm.DB) *gorm.DB {
	return db.Preload("Citations", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}
