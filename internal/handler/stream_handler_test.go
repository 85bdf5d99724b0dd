package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mindful-be/internal/pkg/logger"
	"mindful-be/internal/pkg/serverutils"
	"mindful-be/internal/repository/memory"
	"mindful-be/internal/service"
	internalWS "mindful-be/internal/websocket"
	"mindful-be/pkg/companion"
	"mindful-be/pkg/llm/mock"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "stream-secret"

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	provider := mock.New()
	svc := service.NewCompanionService(memory.NewSessionRepository(time.Hour), nil, companion.Deps{
		Guide: provider,
		Chat:  provider,
		Live:  &mock.LiveDialer{},
	}, service.CompanionOptions{JwtSecret: secret}, logger.NewNopLogger())
	t.Cleanup(svc.Shutdown)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewStreamHandler(svc, internalWS.NewHub(nil, logger.NewNopLogger()), secret, logger.NewNopLogger()).RegisterRoutes(app.Group("/api"))
	return app
}

func upgradeRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	return req
}

func TestPlainRequestNeedsUpgrade(t *testing.T) {
	app := newApp(t)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/companion/v1/stream", nil), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUpgradeRequired, res.StatusCode)
}

func TestHandshakeWithoutToken(t *testing.T) {
	app := newApp(t)

	res, err := app.Test(upgradeRequest("/api/companion/v1/stream"), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
}

func TestHandshakeWithForeignToken(t *testing.T) {
	app := newApp(t)
	token, err := serverutils.IssueSessionToken("other-secret", "s1", time.Hour)
	require.NoError(t, err)

	res, err := app.Test(upgradeRequest("/api/companion/v1/stream?token="+token), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
}
