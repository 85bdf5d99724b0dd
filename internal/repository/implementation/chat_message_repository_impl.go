package implementation

import (
	"context"
	"time"

	"mindful-be/internal/entity"
	"mindful-be/internal/mapper"
	"mindful-be/internal/model"
	"mindful-be/internal/repository/contract"
	"mindful-be/internal/repository/scope"
	"mindful-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatMessageRepository(db *gorm.DB) contract.ChatMessageRepository {
	return &ChatMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatMessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatMessageRepositoryImpl) Create(ctx context.Context, message *entity.ChatMessage) error {
	if message.Id == uuid.Nil {
		message.Id = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := r.mapper.ChatMessageToModel(message)
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		if len(message.Citations) == 0 {
			return nil
		}

		citations := make([]*model.ChatCitation, len(message.Citations))
		for i, c := range message.Citations {
			if c.Id == uuid.Nil {
				c.Id = uuid.New()
			}
			c.ChatMessageId = message.Id
			c.Position = i
			citations[i] = r.mapper.ChatCitationToModel(c)
		}
		return tx.Create(citations).Error
	})
}

// ListBySession returns the newest limit messages of a session, oldest
// first, with citations.
func (r *ChatMessageRepositoryImpl) ListBySession(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.ChatMessage, error) {
	var models []*model.ChatMessage
	err := specification.WithCitations{}.Apply(r.db.WithContext(ctx)).
		Where("companion_session_id = ?", sessionId).
		Scopes(scope.OrderByCreatedDesc, scope.Limit(limit)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entities := make([]*entity.ChatMessage, len(models))
	for i, m := range models {
		entities[len(models)-1-i] = r.mapper.ChatMessageToEntity(m)
	}
	return entities, nil
}

func (r *ChatMessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	var models []*model.ChatMessage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ChatMessage, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChatMessageToEntity(m)
	}
	return entities, nil
}

func (r *ChatMessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatMessage{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChatMessageRepositoryImpl) DeleteBySession(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("companion_session_id = ?", sessionId).Delete(&model.ChatMessage{}).Error
}
