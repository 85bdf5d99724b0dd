package contract

import (
	"context"

	"mindful-be/internal/entity"
	"mindful-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatMessageRepository interface {
	// Create stores the message and its citations.
	Create(ctx context.Context, message *entity.ChatMessage) error
	ListBySession(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.ChatMessage, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	DeleteBySession(ctx context.Context, sessionId uuid.UUID) error
}
