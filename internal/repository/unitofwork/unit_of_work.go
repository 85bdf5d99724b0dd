package unitofwork

import (
	"context"

	"mindful-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	CompanionSessionRepository() contract.CompanionSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	RealmJournalRepository() contract.RealmJournalRepository
}
