package httpserver

import (
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/contrib/fibersentry"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/clovid/prisma-sub000/internal/aggregator"
	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/pkg/apierr"
	"github.com/clovid/prisma-sub000/internal/pkg/cache"
	"github.com/clovid/prisma-sub000/internal/pkg/flog"
	"github.com/clovid/prisma-sub000/internal/pkg/middlewares"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
)

func handleCustomError(ctx *fiber.Ctx, e *apierr.Error) error {
	flog.WarnFrom(ctx).
		Err(e).
		Str("method", ctx.Method()).
		Str("path", ctx.Path()).
		Msg(e.Message)

	body := fiber.Map{
		"code":    e.ErrorCode,
		"message": e.Message,
	}

	if e.Extras != nil && len(*e.Extras) > 0 {
		for k, v := range *e.Extras {
			body[k] = v
		}
	}

	return ctx.Status(e.StatusCode).JSON(body)
}

// translate maps domain errors onto API errors.
func translate(err error) (*apierr.Error, bool) {
	var e *apierr.Error
	switch {
	case errors.As(err, &e):
		return e, true
	case errors.Is(err, appconfig.ErrUnknownModule):
		return apierr.ErrNotFound.Msg("%s", err), true
	case errors.Is(err, cache.ErrNotFound):
		return apierr.ErrNotFound, true
	case errors.Is(err, aggregator.ErrInvalidAggregation):
		return apierr.ErrInvalidAggregation.Msg("%s", err), true
	case errors.Is(err, aggregator.ErrNoStructure), remote.IsFetchError(err):
		return apierr.ErrUpstream.Msg("%s", err), true
	}
	return nil, false
}

func ErrorHandler(ctx *fiber.Ctx, err error) error {
	if e, ok := translate(err); ok {
		return handleCustomError(ctx, e)
	}

	// Default 500 statuscode
	re := *apierr.ErrInternalError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		re.StatusCode = fe.Code
		re.ErrorCode = "UNKNOWN_ERROR"
		re.Message = fe.Message
	}

	flog.ErrorFrom(ctx).
		Stack().
		Err(err).
		Str("method", ctx.Method()).
		Str("path", ctx.Path()).
		Int("status", re.StatusCode).
		Msg("Internal Server Error")

	if hub := fibersentry.GetHubFromContext(ctx); hub != nil {
		hub.Scope().SetTag("status", strconv.Itoa(re.StatusCode))
		if ident := middlewares.IdentityFromCtx(ctx); ident.UserID.Valid {
			hub.Scope().SetUser(sentry.User{ID: ident.UserID.String})
		}
		hub.CaptureException(err)
	}

	return handleCustomError(ctx, &re)
}
