package contract

import (
	"context"

	"mindful-be/internal/entity"
	"mindful-be/internal/repository/specification"
)

type RealmJournalRepository interface {
	Create(ctx context.Context, entry *entity.RealmJournalEntry) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RealmJournalEntry, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
