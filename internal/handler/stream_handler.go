package handler

import (
	"errors"

	"mindful-be/internal/pkg/logger"
	"mindful-be/internal/pkg/serverutils"
	"mindful-be/internal/service"
	internalWS "mindful-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// StreamHandler upgrades a session to a websocket. Text frames out carry the
// session's events; binary frames in are
// little-endian float32 microphone samples.
type StreamHandler struct {
	service   service.ICompanionService
	hub       *internalWS.Hub
	jwtSecret string
	logger    logger.ILogger
}

func NewStreamHandler(service service.ICompanionService, hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

// ServeWs authenticates the handshake, then attaches the socket as the
// session's event sink and microphone.
func (h *StreamHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	// Browsers cannot set headers on a websocket handshake; they send ?token=.
	tokenStr := serverutils.TokenFromRequest(c)
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')"))
	}

	sessionID, err := serverutils.ParseSessionToken(h.jwtSecret, tokenStr)
	if err != nil {
		h.logger.Warn("StreamHandler", "Invalid token in websocket handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	sess, err := h.service.Attach(c.UserContext(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(fiber.StatusNotFound, "Session not found"))
		}
		return err
	}

	return websocket.New(func(conn *websocket.Conn) {
		detach := sess.Microphone.Attach()
		defer detach()

		h.logger.Info("StreamHandler", "Stream opened", map[string]interface{}{"session_id": sessionID})
		internalWS.ServeWs(h.hub, conn, sessionID, func(data []byte) {
			if _, err := sess.Microphone.FeedBytes(data); err != nil {
				h.logger.Debug("StreamHandler", "Dropped malformed audio frame", map[string]interface{}{
					"session_id": sessionID,
					"error":      err.Error(),
				})
			}
		})
		h.logger.Info("StreamHandler", "Stream closed", map[string]interface{}{"session_id": sessionID})
	})(c)
}

func (h *StreamHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/companion/v1/stream", h.ServeWs)
}
