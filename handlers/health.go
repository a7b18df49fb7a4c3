// handlers/health.go
package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether the store can be reached.
type Pinger interface {
	Ping(ctx context.Context) error
}

func SetupHealthRoutes(router fiber.Router, store Pinger) {
	router.Get("/health", func(c *fiber.Ctx) error {
		if err := store.Ping(c.UserContext()); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
