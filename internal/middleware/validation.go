package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
)

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// WriteError maps err onto the error envelope. Causes are logged, never sent.
func WriteError(c fiber.Ctx, err error) error {
	ae, ok := apperr.As(err)
	if !ok {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			ae = &apperr.AppError{Code: apperr.CodeStorageFailure, Message: "request timed out", Cause: err}
		case errors.Is(err, context.Canceled):
			ae = &apperr.AppError{Code: apperr.CodeStorageFailure, Message: "request canceled", Cause: err}
		default:
			ae = &apperr.AppError{Code: apperr.CodeUnknown, Message: "internal error", Cause: err}
		}
	}

	status := apperr.HTTPStatus(ae.Code)
	if status >= fiber.StatusInternalServerError {
		Logger.Error().
			Err(err).
			Str("request_id", RequestID(c)).
			Str("code", string(ae.Code)).
			Str("path", sanitizePath(c.Path())).
			Msg("request failed")
	}
	return ErrorResponse(c, status, string(ae.Code), ae.Message)
}

// ErrorHandler is the fiber.Config error handler. Fiber's own errors keep
// their status; everything else goes through WriteError.
func ErrorHandler(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := "HTTP_ERROR"
		switch fe.Code {
		case fiber.StatusNotFound:
			code = string(apperr.CodeNotFound)
		case fiber.StatusMethodNotAllowed:
			code = "METHOD_NOT_ALLOWED"
		case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
			code = string(apperr.CodeMalformedPayload)
		}
		return ErrorResponse(c, fe.Code, code, fe.Message)
	}
	return WriteError(c, err)
}
