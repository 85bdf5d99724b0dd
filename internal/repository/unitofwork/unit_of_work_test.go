package unitofwork

import (
	"context"
	"testing"

	"mindful-be/internal/entity"
	"mindful-be/internal/model"
	"mindful-be/internal/repository/specification"
	"mindful-be/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollbackDiscardsWrites(t *testing.T) {
	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, model.All()...))
	ctx := context.Background()

	uow := NewRepositoryFactory(db).NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	s := &entity.CompanionSession{Language: "en"}
	require.NoError(t, uow.CompanionSessionRepository().Create(ctx, s))
	require.NoError(t, uow.Rollback())

	got, err := uow.CompanionSessionRepository().FindOne(ctx, specification.ByID{ID: s.Id})
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, uow.Begin(ctx))
	assert.Error(t, uow.Begin(ctx))
	require.NoError(t, uow.CompanionSessionRepository().Create(ctx, s))
	require.NoError(t, uow.Commit())
	assert.Error(t, uow.Commit())

	got, err = uow.CompanionSessionRepository().FindOne(ctx, specification.ByID{ID: s.Id})
	require.NoError(t, err)
	assert.NotNil(t, got)
}
