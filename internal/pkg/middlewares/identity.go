package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/guregu/null.v3"

	"github.com/clovid/prisma-sub000/internal/model"
)

const LocalIdentity = "identity"

// InjectIdentity reads the caller identity the authenticating gateway put into the request
// headers.
func InjectIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(LocalIdentity, model.Identity{
			UserID:   headerValue(c, HeaderUserID),
			UserName: headerValue(c, HeaderUserName),
		})
		return c.Next()
	}
}

func headerValue(c *fiber.Ctx, name string) null.String {
	v := strings.TrimSpace(c.Get(name))
	return null.NewString(v, v != "")
}

func IdentityFromCtx(c *fiber.Ctx) model.Identity {
	ident, _ := c.Locals(LocalIdentity).(model.Identity)
	return ident
}
