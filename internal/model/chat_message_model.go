package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatMessage struct {
	Id                 uuid.UUID      `gorm:"type:uuid;primaryKey"`
	CompanionSessionId uuid.UUID      `gorm:"type:uuid;not null;index"`
	Role               string         `gorm:"type:varchar(20);not null"`
	Text               string         `gorm:"type:text;not null"`
	HasImage           bool           `gorm:"not null;default:false"`
	CreatedAt          time.Time      `gorm:"autoCreateTime"`
	DeletedAt          gorm.DeletedAt `gorm:"index"`

	Citations []ChatCitation `gorm:"foreignKey:ChatMessageId;references:Id;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

type ChatCitation struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey"`
	ChatMessageId uuid.UUID `gorm:"type:uuid;not null;index"`
	Position      int       `gorm:"not null"`
	Uri           string    `gorm:"type:text;not null"`
	Title         string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (ChatCitation) TableName() string {
	return "chat_citations"
}
