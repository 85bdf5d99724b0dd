package mapper

import (
	"time"

	"mindful-be/internal/entity"
	"mindful-be/internal/model"

	"gorm.io/gorm"
)

type CompanionMapper struct{}

func NewCompanionMapper() *CompanionMapper {
	return &CompanionMapper{}
}

func (m *CompanionMapper) SessionToEntity(s *model.CompanionSession) *entity.CompanionSession {
	if s == nil {
		return nil
	}

	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.CompanionSession{
		Id:           s.Id,
		Language:     s.Language,
		TtsEnabled:   s.TtsEnabled,
		Track:        s.Track,
		Mode:         s.Mode,
		LastActiveAt: s.LastActiveAt,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    updatedAt,
		DeletedAt:    deletedAt,
		IsDeleted:    s.DeletedAt.Valid,
	}
}

func (m *CompanionMapper) SessionToModel(s *entity.CompanionSession) *model.CompanionSession {
	if s == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if s.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	} else if s.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.CompanionSession{
		Id:           s.Id,
		Language:     s.Language,
		TtsEnabled:   s.TtsEnabled,
		Track:        s.Track,
		Mode:         s.Mode,
		LastActiveAt: s.LastActiveAt,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    updatedAt,
		DeletedAt:    deletedAt,
	}
}
