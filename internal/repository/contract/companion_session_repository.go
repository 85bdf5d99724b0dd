package contract

import (
	"context"

	"mindful-be/internal/entity"
	"mindful-be/internal/repository/specification"

	"github.com/google/uuid"
)

type CompanionSessionRepository interface {
	Create(ctx context.Context, session *entity.CompanionSession) error
	Update(ctx context.Context, session *entity.CompanionSession) error
	Touch(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.CompanionSession, error)
}
