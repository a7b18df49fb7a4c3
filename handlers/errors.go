// handlers/errors.go
package handlers

import (
	"errors"

	"game-records-api/storage"
	"game-records-api/validation"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the only place a failed request gets its response.
// Handlers return errors and never write a body first.
func ErrorHandler(logger *log.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError

		var verr *validation.Error
		var ferr *fiber.Error
		var perr *storage.PersistenceError
		switch {
		case errors.As(err, &verr):
			status = fiber.StatusBadRequest
		case errors.As(err, &ferr):
			status = ferr.Code
		case errors.As(err, &perr):
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "kind", perr.Kind, "err", err)
		default:
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
		}

		return c.Status(status).JSON(fiber.Map{"message": err.Error()})
	}
}
