package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ErrNotFound is wrapped by service errors that should surface as 404.
var ErrNotFound = errors.New("not found")

// ErrorHandlerMiddleware converts errors returned further down the chain into
// the standard response envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code, message := classify(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

func classify(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return fiber.StatusBadRequest, ve.Error()
	}

	if errors.Is(err, ErrNotFound) {
		return fiber.StatusNotFound, err.Error()
	}

	return fiber.StatusInternalServerError, "Internal server error"
}
