package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CompanionSession struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Language     string         `gorm:"type:varchar(10);not null;default:'en'"`
	TtsEnabled   bool           `gorm:"not null;default:true"`
	Track        string         `gorm:"type:varchar(50)"`
	Mode         string         `gorm:"type:varchar(20);not null;default:'guidance'"`
	LastActiveAt time.Time      `gorm:"index"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (CompanionSession) TableName() string {
	return "companion_sessions"
}
