package middlewares

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clovid/prisma-sub000/internal/pkg/flog"
)

const LocalRequestID = "requestId"

// RequestID copies the id assigned by the logger middleware into the request locals.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, ok := flog.IDFromFiberCtx(c); ok {
			c.Locals(LocalRequestID, id.String())
		}
		return c.Next()
	}
}
