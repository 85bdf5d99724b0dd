package controller

import (
	"errors"
	"time"

	"mindful-be/internal/dto"
	"mindful-be/internal/pkg/serverutils"
	"mindful-be/internal/service"
	"mindful-be/pkg/chat"
	"mindful-be/pkg/mode"

	"github.com/gofiber/fiber/v2"
)

type ICompanionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Resume(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	End(ctx *fiber.Ctx) error
	SetMode(ctx *fiber.Ctx) error
	Submit(ctx *fiber.Ctx) error
	UpdatePreferences(ctx *fiber.Ctx) error
	Tracks(ctx *fiber.Ctx) error
	Journal(ctx *fiber.Ctx) error
}

type companionController struct {
	service        service.ICompanionService
	journalService service.IJournalService
	jwtSecret      string
}

// NewCompanionController builds the controller; journalService may be nil
// when no database is configured.
func NewCompanionController(service service.ICompanionService, journalService service.IJournalService, jwtSecret string) ICompanionController {
	return &companionController{
		service:        service,
		journalService: journalService,
		jwtSecret:      jwtSecret,
	}
}

func (c *companionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/companion/v1")
	h.Post("/sessions", c.Create)
	h.Get("/tracks", c.Tracks)

	protected := h.Group("", serverutils.JwtMiddleware(c.jwtSecret))
	protected.Post("/sessions/resume", c.Resume)
	protected.Get("/session", c.Show)
	protected.Delete("/session", c.End)
	protected.Put("/mode", c.SetMode)
	protected.Post("/input", c.Submit)
	protected.Put("/preferences", c.UpdatePreferences)
	protected.Get("/journal", c.Journal)
}

func (c *companionController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.Context(), &req)
	if err != nil {
		return mapError(err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Session created", res))
}

func (c *companionController) Resume(ctx *fiber.Ctx) error {
	res, err := c.service.Resume(ctx.Context(), serverutils.SessionID(ctx))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Session resumed", res))
}

func (c *companionController) Show(ctx *fiber.Ctx) error {
	res, err := c.service.Get(ctx.Context(), serverutils.SessionID(ctx))
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *companionController) End(ctx *fiber.Ctx) error {
	if err := c.service.End(ctx.Context(), serverutils.SessionID(ctx)); err != nil {
		return mapError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Session ended", nil))
}

func (c *companionController) SetMode(ctx *fiber.Ctx) error {
	var req dto.SetModeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SetMode(ctx.Context(), serverutils.SessionID(ctx), &req)
	if err != nil {
		return mapError(err)
	}

	message := "Mode changed"
	if res.Reverted {
		message = "Live voice unavailable, returned to guidance"
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}

func (c *companionController) Submit(ctx *fiber.Ctx) error {
	var req dto.InputRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Submit(ctx.Context(), serverutils.SessionID(ctx), &req)
	if err != nil {
		return mapError(err)
	}

	if res.Reply != nil {
		return ctx.JSON(serverutils.SuccessResponse("Reply appended", res))
	}
	if !res.Accepted {
		return ctx.JSON(serverutils.SuccessResponse("Typed input is ignored during live voice", res))
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Guidance requested", res))
}

func (c *companionController) UpdatePreferences(ctx *fiber.Ctx) error {
	var req dto.UpdatePreferencesRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.UpdatePreferences(ctx.Context(), serverutils.SessionID(ctx), &req)
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Preferences updated", res))
}

func (c *companionController) Tracks(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Ambient tracks", c.service.Tracks()))
}

func (c *companionController) Journal(ctx *fiber.Ctx) error {
	if c.journalService == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Journal storage is not configured")
	}

	query := dto.JournalQuery{
		Realm:  ctx.Query("realm"),
		Intent: ctx.Query("intent"),
		Limit:  ctx.QueryInt("limit", 20),
	}
	if since := ctx.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "since must be an RFC3339 timestamp")
		}
		query.Since = t
	}

	res, err := c.journalService.List(ctx.Context(), serverutils.SessionID(ctx), query)
	if err != nil {
		return mapError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Realm journal", res))
}

// mapError turns caller mistakes into 4xx responses; everything else is left
// to the error middleware.
func mapError(err error) error {
	switch {
	case errors.Is(err, mode.ErrUnknownMode),
		errors.Is(err, mode.ErrEmptyInput),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidImage),
		errors.Is(err, service.ErrUnknownTrack),
		errors.Is(err, service.ErrUnsupportedLanguage):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrChatUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, service.ErrChatUnavailable.Error())
	}
	return err
}
