package controller

import (
	"bufio"
	"context"
	"fmt"
	"unicode/utf8"

	"clinical-intake-be/internal/constant"
	"clinical-intake-be/internal/dto"
	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/internal/pkg/serverutils"
	"clinical-intake-be/internal/service"
	"clinical-intake-be/pkg/ai/pipeline"
	"clinical-intake-be/pkg/safety"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	HeaderSessionId      = "X-Session-Id"
	HeaderSafetyOverride = "X-Safety-Override"
)

type IIntakeController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	CreateSession(ctx *fiber.Ctx) error
	ListSessions(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
	GenerateSummary(ctx *fiber.Ctx) error
	GetSummary(ctx *fiber.Ctx) error
}

type intakeController struct {
	service   service.IIntakeService
	jwtSecret string
	logger    logger.ILogger
}

func NewIntakeController(service service.IIntakeService, jwtSecret string, log logger.ILogger) IIntakeController {
	return &intakeController{
		service:   service,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

func (c *intakeController) RegisterRoutes(r fiber.Router) {
	auth := serverutils.NewJwtMiddleware(c.jwtSecret)
	patient := serverutils.RequireRole(constant.UserRolePatient)

	h := r.Group("/intake/v1")
	h.Post("/chat", auth, patient, c.Chat)
	h.Post("/sessions", auth, patient, c.CreateSession)
	h.Get("/sessions", auth, c.ListSessions)
	h.Get("/sessions/:id", auth, c.ShowSession)
	h.Post("/sessions/:id/summary", auth, c.GenerateSummary)
	h.Get("/sessions/:id/summary", auth, c.GetSummary)
}

// Chat answers with the safety message, or streams the model reply as plain text.
// Errors raised before the first chunk are rendered as JSON by the error handler.
func (c *intakeController) Chat(ctx *fiber.Ctx) error {
	identity, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var req dto.SendTurnRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// The gate runs before any storage call so a crisis reply never depends on it.
	crisis := safety.Evaluate(req.Message)
	if !crisis && utf8.RuneCountInString(req.Message) > constant.MessageMaxLen {
		return &serverutils.ValidationError{Fields: map[string]string{
			"message": fmt.Sprintf("max=%d", constant.MessageMaxLen),
		}}
	}

	sess, err := c.service.ResolveSession(ctx.UserContext(), identity, req.SessionId)
	if err != nil {
		if !crisis {
			return err
		}
		c.logger.Error("INTAKE", "Session unavailable for crisis turn, replying without persistence", logger.ErrorDetails(err, map[string]interface{}{
			"owner_id": identity.UserId.String(),
		}))
		return sendSafetyMessage(ctx)
	}
	ctx.Set(HeaderSessionId, sess.Id.String())

	// The turn outlives the request: it must persist even if the client disconnects.
	stream := startTurn(func(sink pipeline.Sink) (*pipeline.TurnResult, error) {
		return c.service.SendTurn(context.Background(), identity.UserId, sess.Id, req.Message, sink)
	})

	first := stream.next()
	if first.done {
		if first.err != nil {
			if !crisis {
				return first.err
			}
			c.logger.Error("INTAKE", "Crisis turn failed, replying with safety message", logger.ErrorDetails(first.err, map[string]interface{}{
				"session_id": sess.Id.String(),
			}))
			return sendSafetyMessage(ctx)
		}
		if first.result.Crisis {
			return sendSafetyMessage(ctx)
		}
		ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return ctx.SendString(first.result.Reply)
	}

	ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	sessionId := sess.Id
	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		final, delivered := stream.drain(w, first.chunk)
		if final.err != nil {
			c.logger.Error("INTAKE", "Turn failed after streaming started", logger.ErrorDetails(final.err, map[string]interface{}{
				"session_id": sessionId.String(),
			}))
			if delivered {
				_, msg := serverutils.ClassifyError(final.err)
				_ = writeChunk(w, "\n\n[error] "+msg)
			}
			return
		}
		if !delivered {
			c.logger.Info("INTAKE", "Client left mid-stream, turn saved", map[string]interface{}{
				"session_id": sessionId.String(),
			})
		}
	})
	return nil
}

func sendSafetyMessage(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	ctx.Set(HeaderSafetyOverride, "true")
	return ctx.SendString(safety.Message)
}

func (c *intakeController) CreateSession(ctx *fiber.Ctx) error {
	identity, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	res, err := c.service.CreateSession(ctx.UserContext(), identity, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *intakeController) ListSessions(ctx *fiber.Ctx) error {
	identity, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.ListSessions(ctx.UserContext(), identity)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all sessions", res))
}

func (c *intakeController) ShowSession(ctx *fiber.Ctx) error {
	identity, sessionId, err := identityAndSession(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetSession(ctx.UserContext(), identity, sessionId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *intakeController) GenerateSummary(ctx *fiber.Ctx) error {
	identity, sessionId, err := identityAndSession(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GenerateSummary(ctx.UserContext(), identity, sessionId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success generate summary", res))
}

func (c *intakeController) GetSummary(ctx *fiber.Ctx) error {
	identity, sessionId, err := identityAndSession(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetSummary(ctx.UserContext(), identity, sessionId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get summary", res))
}

func identityAndSession(ctx *fiber.Ctx) (dto.Identity, uuid.UUID, error) {
	identity, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return dto.Identity{}, uuid.Nil, err
	}
	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return dto.Identity{}, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid session id")
	}
	return identity, sessionId, nil
}
