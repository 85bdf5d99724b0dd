package mapper

import (
	"encoding/json"

	"mindful-be/internal/entity"
	"mindful-be/internal/model"

	"gorm.io/datatypes"
)

type JournalMapper struct{}

func NewJournalMapper() *JournalMapper {
	return &JournalMapper{}
}

// EntryToEntity decodes the context snapshot; an unreadable snapshot maps to
// an empty context rather than failing the read.
func (m *JournalMapper) EntryToEntity(e *model.RealmJournalEntry) *entity.RealmJournalEntry {
	if e == nil {
		return nil
	}

	var snapshot []string
	if len(e.Context) > 0 {
		_ = json.Unmarshal(e.Context, &snapshot)
	}

	return &entity.RealmJournalEntry{
		Id:                 e.Id,
		CompanionSessionId: e.CompanionSessionId,
		Realm:              e.Realm,
		ActionIntent:       e.ActionIntent,
		Urgency:            e.Urgency,
		Advice:             e.Advice,
		Fallback:           e.Fallback,
		Context:            snapshot,
		CreatedAt:          e.CreatedAt,
	}
}

func (m *JournalMapper) EntryToModel(e *entity.RealmJournalEntry) (*model.RealmJournalEntry, error) {
	if e == nil {
		return nil, nil
	}

	snapshot := e.Context
	if snapshot == nil {
		snapshot = []string{}
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}

	return &model.RealmJournalEntry{
		Id:                 e.Id,
		CompanionSessionId: e.CompanionSessionId,
		Realm:              e.Realm,
		ActionIntent:       e.ActionIntent,
		Urgency:            e.Urgency,
		Advice:             e.Advice,
		Fallback:           e.Fallback,
		Context:            datatypes.JSON(raw),
		CreatedAt:          e.CreatedAt,
	}, nil
}
