package mapper

import (
	"time"

	"mindful-be/internal/entity"
	"mindful-be/internal/model"

	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Message Mappers

func (m *ChatMapper) ChatMessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}

	var deletedAt *time.Time
	if msg.DeletedAt.Valid {
		t := msg.DeletedAt.Time
		deletedAt = &t
	}

	e := &entity.ChatMessage{
		Id:                 msg.Id,
		CompanionSessionId: msg.CompanionSessionId,
		Role:               msg.Role,
		Text:               msg.Text,
		HasImage:           msg.HasImage,
		CreatedAt:          msg.CreatedAt,
		DeletedAt:          deletedAt,
		IsDeleted:          msg.DeletedAt.Valid,
	}
	for i := range msg.Citations {
		e.Citations = append(e.Citations, m.ChatCitationToEntity(&msg.Citations[i]))
	}
	return e
}

// ChatMessageToModel maps the message row only; citations are written
// separately so they get their own ids.
func (m *ChatMapper) ChatMessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if msg.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *msg.DeletedAt, Valid: true}
	} else if msg.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	return &model.ChatMessage{
		Id:                 msg.Id,
		CompanionSessionId: msg.CompanionSessionId,
		Role:               msg.Role,
		Text:               msg.Text,
		HasImage:           msg.HasImage,
		CreatedAt:          msg.CreatedAt,
		DeletedAt:          deletedAt,
	}
}

// Citation Mappers

func (m *ChatMapper) ChatCitationToEntity(c *model.ChatCitation) *entity.ChatCitation {
	if c == nil {
		return nil
	}
	return &entity.ChatCitation{
		Id:            c.Id,
		ChatMessageId: c.ChatMessageId,
		Position:      c.Position,
		Uri:           c.Uri,
		Title:         c.Title,
		CreatedAt:     c.CreatedAt,
	}
}

func (m *ChatMapper) ChatCitationToModel(c *entity.ChatCitation) *model.ChatCitation {
	if c == nil {
		return nil
	}
	return &model.ChatCitation{
		Id:            c.Id,
		ChatMessageId: c.ChatMessageId,
		Position:      c.Position,
		Uri:           c.Uri,
		Title:         c.Title,
		CreatedAt:     c.CreatedAt,
	}
}
