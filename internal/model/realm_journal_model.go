package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RealmJournalEntry struct {
	Id                 uuid.UUID      `gorm:"type:uuid;primaryKey"`
	CompanionSessionId uuid.UUID      `gorm:"type:uuid;not null;index"`
	Realm              string         `gorm:"type:varchar(100);not null;index"`
	ActionIntent       string         `gorm:"type:varchar(20);not null"`
	Urgency            string         `gorm:"type:varchar(10);not null"`
	Advice             string         `gorm:"type:text"`
	Fallback           bool           `gorm:"not null;default:false"`
	Context            datatypes.JSON `gorm:"not null"`
	CreatedAt          time.Time      `gorm:"autoCreateTime;index"`
}

func (RealmJournalEntry) TableName() string {
	return "realm_journal_entries"
}
