package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mindful-be/internal/dto"
	"mindful-be/internal/pkg/logger"
	"mindful-be/internal/pkg/serverutils"
	"mindful-be/internal/repository/memory"
	"mindful-be/internal/service"
	"mindful-be/pkg/companion"
	"mindful-be/pkg/events"
	"mindful-be/pkg/llm"
	"mindful-be/pkg/llm/mock"
	pktNats "mindful-be/pkg/nats"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "controller-secret"

func newApp(t *testing.T, provider *mock.Provider) *fiber.App {
	t.Helper()
	return newAppWithJournal(t, provider, nil)
}

func newAppWithJournal(t *testing.T, provider *mock.Provider, journal service.IJournalService) *fiber.App {
	t.Helper()
	svc := service.NewCompanionService(memory.NewSessionRepository(time.Hour), nil, companion.Deps{
		Guide: provider,
		Chat:  provider,
		Live:  &mock.LiveDialer{},
	}, service.CompanionOptions{
		Session:   companion.Config{TimeUnit: 10 * time.Millisecond},
		JwtSecret: secret,
		TokenTTL:  time.Hour,
	}, logger.NewNopLogger())
	t.Cleanup(svc.Shutdown)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewCompanionController(svc, journal, secret).RegisterRoutes(app.Group("/api"))
	return app
}

func call(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func createSession(t *testing.T, app *fiber.App) string {
	t.Helper()
	code, out := call(t, app, http.MethodPost, "/api/companion/v1/sessions", "", map[string]interface{}{"language": "en"})
	require.Equal(t, http.StatusCreated, code)
	return out["data"].(map[string]interface{})["token"].(string)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newApp(t, mock.New())

	code, out := call(t, app, http.MethodGet, "/api/companion/v1/session", "", nil)

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, out["success"])
}

func TestGuidanceInputIsAccepted(t *testing.T) {
	app := newApp(t, mock.New())
	token := createSession(t, app)

	code, out := call(t, app, http.MethodPost, "/api/companion/v1/input", token, map[string]interface{}{"text": "I feel restless"})

	assert.Equal(t, http.StatusAccepted, code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "guidance", data["mode"])
	assert.Equal(t, float64(1), data["generation"])
}

func TestEmptyInputIsBadRequest(t *testing.T) {
	app := newApp(t, mock.New())
	token := createSession(t, app)

	code, _ := call(t, app, http.MethodPost, "/api/companion/v1/input", token, map[string]interface{}{"text": "  "})

	assert.Equal(t, http.StatusBadRequest, code)
}

func TestChatReplyAndFailure(t *testing.T) {
	provider := mock.New().
		QueueChat(llm.ChatReply{Text: "Metta is loving-kindness."}, nil).
		QueueChat(llm.ChatReply{}, errors.New("upstream 503"))
	app := newApp(t, provider)
	token := createSession(t, app)

	code, _ := call(t, app, http.MethodPut, "/api/companion/v1/mode", token, map[string]interface{}{"mode": "chat"})
	require.Equal(t, http.StatusOK, code)

	code, out := call(t, app, http.MethodPost, "/api/companion/v1/input", token, map[string]interface{}{"text": "What is metta?"})
	require.Equal(t, http.StatusOK, code)
	reply := out["data"].(map[string]interface{})["reply"].(map[string]interface{})
	assert.Equal(t, "Metta is loving-kindness.", reply["text"])

	code, _ = call(t, app, http.MethodPost, "/api/companion/v1/input", token, map[string]interface{}{"text": "And karuna?"})
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestUnknownModeIsBadRequest(t *testing.T) {
	app := newApp(t, mock.New())
	token := createSession(t, app)

	code, _ := call(t, app, http.MethodPut, "/api/companion/v1/mode", token, map[string]interface{}{"mode": "karaoke"})

	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLiveWithoutMicrophoneReportsRevert(t *testing.T) {
	app := newApp(t, mock.New())
	token := createSession(t, app)

	code, out := call(t, app, http.MethodPut, "/api/companion/v1/mode", token, map[string]interface{}{"mode": "live"})

	require.Equal(t, http.StatusOK, code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "guidance", data["mode"])
	assert.Equal(t, true, data["reverted"])
}

func TestEndedSessionIsNotFound(t *testing.T) {
	app := newApp(t, mock.New())
	token := createSession(t, app)

	code, _ := call(t, app, http.MethodDelete, "/api/companion/v1/session", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = call(t, app, http.MethodGet, "/api/companion/v1/session", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestJournalWithoutStorage(t *testing.T) {
	app := newApp(t, mock.New())
	token := createSession(t, app)

	code, _ := call(t, app, http.MethodGet, "/api/companion/v1/journal", token, nil)

	assert.Equal(t, http.StatusServiceUnavailable, code)
}

type journalStub struct {
	query dto.JournalQuery
}

func (j *journalStub) Start(context.Context, *pktNats.Subscriber) error { return nil }

func (j *journalStub) Record(context.Context, events.Event) error { return nil }

func (j *journalStub) List(_ context.Context, _ string, query dto.JournalQuery) ([]dto.JournalEntryResponse, error) {
	j.query = query
	return []dto.JournalEntryResponse{}, nil
}

func TestJournalFilters(t *testing.T) {
	journal := &journalStub{}
	app := newAppWithJournal(t, mock.New(), journal)
	token := createSession(t, app)

	code, _ := call(t, app, http.MethodGet, "/api/companion/v1/journal?realm=Anxiety&intent=PLAY_SOUND&since=2026-01-02T15:04:05Z&limit=5", token, nil)

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Anxiety", journal.query.Realm)
	assert.Equal(t, "PLAY_SOUND", journal.query.Intent)
	assert.Equal(t, 5, journal.query.Limit)
	assert.True(t, journal.query.Since.Equal(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)))
}

func TestJournalRejectsBadSince(t *testing.T) {
	app := newAppWithJournal(t, mock.New(), &journalStub{})
	token := createSession(t, app)

	code, _ := call(t, app, http.MethodGet, "/api/companion/v1/journal?since=yesterday", token, nil)

	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTracksArePublic(t *testing.T) {
	app := newApp(t, mock.New())

	code, out := call(t, app, http.MethodGet, "/api/companion/v1/tracks", "", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, out["data"])
}
