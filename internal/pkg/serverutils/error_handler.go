package serverutils

import (
	"errors"

	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/pkg/ai/pipeline"
	"clinical-intake-be/pkg/rag/message"
	"clinical-intake-be/pkg/rag/session"

	"github.com/gofiber/fiber/v2"
)

// ClassifyError maps a domain error onto an HTTP status and a client-safe message.
func ClassifyError(err error) (int, string) {
	var verr *ValidationError
	var ferr *fiber.Error

	switch {
	case errors.As(err, &verr):
		return fiber.StatusBadRequest, verr.Error()
	case errors.Is(err, pipeline.ErrValidation):
		return fiber.StatusBadRequest, "Invalid request"
	case errors.Is(err, pipeline.ErrNothingToSummarize):
		return fiber.StatusBadRequest, "Session has no turns to summarize"
	case errors.Is(err, session.ErrAccessDenied):
		return fiber.StatusForbidden, "Access denied"
	case errors.Is(err, session.ErrSessionNotFound):
		return fiber.StatusNotFound, "Session not found"
	case errors.Is(err, message.ErrSummaryNotFound):
		return fiber.StatusNotFound, "Summary not found"
	case errors.Is(err, pipeline.ErrTurnInProgress):
		return fiber.StatusConflict, "A message is already being processed for this session"
	case errors.Is(err, pipeline.ErrProvider):
		return fiber.StatusBadGateway, "The assistant is unavailable, please try again"
	case errors.Is(err, pipeline.ErrPersistence):
		return fiber.StatusInternalServerError, "Failed to save the conversation"
	case errors.As(err, &ferr):
		return ferr.Code, ferr.Message
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

// ErrorHandlerMiddleware renders errors returned by handlers as ErrorResponse JSON.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status, msg := ClassifyError(err)
		if status >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Request failed", logger.ErrorDetails(err, map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"status": status,
			}))
		}
		return ctx.Status(status).JSON(ErrorResponse(status, msg))
	}
}
