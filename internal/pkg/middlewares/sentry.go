package middlewares

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/contrib/fibersentry"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// EnrichSentry tags the request's sentry scope with the request id and caller.
func EnrichSentry() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if hub := fibersentry.GetHubFromContext(c); hub != nil {
			if id, ok := c.Locals(LocalRequestID).(string); ok {
				hub.Scope().SetTag("request_id", id)
			}
			if ident := IdentityFromCtx(c); ident.UserID.Valid {
				hub.Scope().SetUser(sentry.User{ID: ident.UserID.String, Username: ident.UserName.String})
			}
		}

		var r http.Request
		if err := fasthttpadaptor.ConvertRequest(c.Context(), &r, true); err != nil {
			return err
		}
		rootSpan := sentry.StartSpan(c.Context(), "prisma", sentry.ContinueFromRequest(&r))
		defer rootSpan.Finish()

		return c.Next()
	}
}
