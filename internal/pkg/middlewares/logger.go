package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/clovid/prisma-sub000/internal/pkg/flog"
)

const (
	HeaderRequestID = "X-Prisma-Request-ID"
	HeaderUserID    = "X-Prisma-User-ID"
	HeaderUserName  = "X-Prisma-User-Name"
)

func Logger(app *fiber.App) {
	for _, h := range []fiber.Handler{
		flog.NewHandlerMiddleware(log.With().Logger()),
		flog.RequestIDHandler("request_id", HeaderRequestID),
		flog.FieldHandler("ip", flog.IP),
		flog.FieldHandler("method", flog.Method),
		flog.FieldHandler("url", flog.Path),
		flog.FieldHandler("user_id", flog.Header(HeaderUserID)),
		requestLogger(),
	} {
		app.Use(h)
	}
}

func requestLogger() fiber.Handler {
	return flog.AccessHandler(func(ctx *fiber.Ctx, duration time.Duration) {
		flog.FromFiberCtx(ctx).Info().
			Str("component", "httpreq").
			Int("status", ctx.Response().StatusCode()).
			Int("size", len(ctx.Response().Body())).
			Dur("duration", duration).
			Msg("received request")
	})
}
