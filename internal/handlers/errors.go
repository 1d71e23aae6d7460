package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/example/orderdesk/internal/services"
)

var statusByKind = map[services.Kind]int{
	services.KindUnauthenticated:       fiber.StatusUnauthorized,
	services.KindInvalidToken:          fiber.StatusUnauthorized,
	services.KindForbidden:             fiber.StatusForbidden,
	services.KindNotFound:              fiber.StatusNotFound,
	services.KindValidation:            fiber.StatusUnprocessableEntity,
	services.KindInvalidCredentials:    fiber.StatusUnauthorized,
	services.KindWeakPassword:          fiber.StatusBadRequest,
	services.KindInvalidOrExpiredToken: fiber.StatusBadRequest,
}

// StatusFor maps a service error kind to its HTTP status.
func StatusFor(kind services.Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders every error returned by a handler as
// {"success": false, "error": kind, "message": ..., "fields": ...}.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"success": false,
				"error":   errorCode(fe.Code),
				"message": fe.Message,
			})
		}

		var se *services.Error
		if !errors.As(err, &se) || se.Kind == services.KindInternal {
			log.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   string(services.KindInternal),
				"message": "internal server error",
			})
		}

		body := fiber.Map{
			"success": false,
			"error":   string(se.Kind),
			"message": se.Message,
		}
		if len(se.Fields) > 0 {
			body["fields"] = se.Fields
		}
		return c.Status(StatusFor(se.Kind)).JSON(body)
	}
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return string(services.KindUnauthenticated)
	case fiber.StatusForbidden:
		return string(services.KindForbidden)
	case fiber.StatusNotFound:
		return string(services.KindNotFound)
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusRequestEntityTooLarge:
		return "payload_too_large"
	}
	if status >= fiber.StatusInternalServerError {
		return string(services.KindInternal)
	}
	return "error"
}

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}
