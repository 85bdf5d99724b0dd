package serverutils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const SessionIDKey = "session_id"

var ErrInvalidToken = errors.New("invalid session token")

// IssueSessionToken signs an HS256 token carrying the companion session id.
func IssueSessionToken(secret, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		SessionIDKey: sessionID,
		"iat":        now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseSessionToken returns the session id of a valid token.
func ParseSessionToken(secret, tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sessionID, ok := claims[SessionIDKey].(string)
	if !ok || sessionID == "" {
		return "", ErrInvalidToken
	}
	return sessionID, nil
}

// TokenFromRequest reads a bearer token, falling back to the "token" query
// parameter browsers use for WebSocket upgrades.
func TokenFromRequest(ctx *fiber.Ctx) string {
	if auth := ctx.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ctx.Query("token")
}

// JwtMiddleware rejects requests without a valid session token and stores
// the session id in ctx.Locals(SessionIDKey).
func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := TokenFromRequest(ctx)
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		sessionID, err := ParseSessionToken(secret, tokenStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		ctx.Locals(SessionIDKey, sessionID)
		return ctx.Next()
	}
}

// SessionID returns the id stored by JwtMiddleware.
func SessionID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(SessionIDKey).(string)
	return id
}
