package implementation

import (
	"context"
	"testing"
	"time"

	"mindful-be/internal/entity"
	"mindful-be/internal/model"
	"mindful-be/internal/repository/specification"
	"mindful-be/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, model.All()...))
	return db
}

func TestCompanionSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewCompanionSessionRepository(setupDB(t))

	s := &entity.CompanionSession{Language: "vi", TtsEnabled: true, Mode: "guidance"}
	require.NoError(t, repo.Create(ctx, s))
	require.NotEqual(t, uuid.Nil, s.Id)

	s.Mode = "chat"
	s.Track = "rain"
	require.NoError(t, repo.Update(ctx, s))

	got, err := repo.FindOne(ctx, specification.ByID{ID: s.Id})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "chat", got.Mode)
	assert.Equal(t, "rain", got.Track)
	assert.Equal(t, "vi", got.Language)

	require.NoError(t, repo.Delete(ctx, s.Id))
	got, err = repo.FindOne(ctx, specification.ByID{ID: s.Id})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTouchUpdatesLastActive(t *testing.T) {
	ctx := context.Background()
	repo := NewCompanionSessionRepository(setupDB(t))
	past := time.Now().Add(-time.Hour)
	s := &entity.CompanionSession{Language: "en", LastActiveAt: past}
	require.NoError(t, repo.Create(ctx, s))

	require.NoError(t, repo.Touch(ctx, s.Id))

	got, err := repo.FindOne(ctx, specification.ByID{ID: s.Id})
	require.NoError(t, err)
	assert.True(t, got.LastActiveAt.After(past))
}

func TestChatMessagesKeepOrderAndCitations(t *testing.T) {
	ctx := context.Background()
	repo := NewChatMessageRepository(setupDB(t))
	sessionID := uuid.New()
	base := time.Now()

	for i, text := range []string{"hi", "hello", "what is metta?", "loving-kindness"} {
		msg := &entity.ChatMessage{
			CompanionSessionId: sessionID,
			Role:               []string{"user", "model"}[i%2],
			Text:               text,
			CreatedAt:          base.Add(time.Duration(i) * time.Second),
		}
		if text == "loving-kindness" {
			msg.Citations = []*entity.ChatCitation{
				{Uri: "https://a", Title: "A"},
				{Uri: "https://b", Title: "B"},
			}
		}
		require.NoError(t, repo.Create(ctx, msg))
	}
	require.NoError(t, repo.Create(ctx, &entity.ChatMessage{CompanionSessionId: uuid.New(), Role: "user", Text: "other"}))

	all, err := repo.ListBySession(ctx, sessionID, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "hi", all[0].Text)

	recent, err := repo.ListBySession(ctx, sessionID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "what is metta?", recent[0].Text)
	assert.Equal(t, "loving-kindness", recent[1].Text)
	require.Len(t, recent[1].Citations, 2)
	assert.Equal(t, "https://a", recent[1].Citations[0].Uri)
	assert.Equal(t, 1, recent[1].Citations[1].Position)

	n, err := repo.Count(ctx, specification.ByCompanionSessionID{SessionID: sessionID}, specification.Filter("role", "user"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, repo.DeleteBySession(ctx, sessionID))
	n, err = repo.Count(ctx, specification.ByCompanionSessionID{SessionID: sessionID})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRealmJournal(t *testing.T) {
	ctx := context.Background()
	repo := NewRealmJournalRepository(setupDB(t))
	sessionID := uuid.New()

	require.NoError(t, repo.Create(ctx, &entity.RealmJournalEntry{
		CompanionSessionId: sessionID,
		Realm:              "Anxiety",
		ActionIntent:       "PLAY_SOUND",
		Urgency:            "high",
		Context:            []string{"Grief", "Anxiety"},
	}))
	require.NoError(t, repo.Create(ctx, &entity.RealmJournalEntry{
		CompanionSessionId: sessionID,
		Realm:              "Calm",
		ActionIntent:       "NONE",
		Urgency:            "low",
	}))

	entries, err := repo.FindAll(ctx,
		specification.ByCompanionSessionID{SessionID: sessionID},
		specification.ByRealm{Realm: "Anxiety"},
	)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"Grief", "Anxiety"}, entries[0].Context)

	n, err := repo.Count(ctx, specification.CreatedSince{Since: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	calm, err := repo.FindAll(ctx, specification.ByRealm{Realm: "Calm"})
	require.NoError(t, err)
	assert.Empty(t, calm[0].Context)
}
