// Package flog attaches a request scoped zerolog logger to fiber requests.
package flog

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FromFiberCtx gets the logger in the request's context.
// This is a shortcut for log.Ctx(r.UserContext())
func FromFiberCtx(ctx *fiber.Ctx) *zerolog.Logger {
	return log.Ctx(ctx.UserContext())
}

// NewHandlerMiddleware injects a copy of l into every request's context.
func NewHandlerMiddleware(l zerolog.Logger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		// copy, so UpdateContext on one request cannot race with another
		reqLogger := l.With().Logger()
		ctx.SetUserContext(reqLogger.WithContext(ctx.UserContext()))
		return ctx.Next()
	}
}

// FieldHandler adds the value extracted from the request as a field to the request's logger.
// Empty values are not logged.
func FieldHandler(fieldKey string, value func(ctx *fiber.Ctx) string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if v := value(ctx); v != "" {
			FromFiberCtx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str(fieldKey, v)
			})
		}
		return ctx.Next()
	}
}

func IP(ctx *fiber.Ctx) string     { return ctx.IP() }
func Method(ctx *fiber.Ctx) string { return ctx.Method() }
func Path(ctx *fiber.Ctx) string   { return ctx.Path() }

// Header returns an extractor for the named request header.
func Header(name string) func(ctx *fiber.Ctx) string {
	return func(ctx *fiber.Ctx) string {
		return ctx.Get(name)
	}
}

type idKey struct{}

// IDFromFiberCtx returns the request id of ctx, if RequestIDHandler assigned one.
func IDFromFiberCtx(ctx *fiber.Ctx) (xid.ID, bool) {
	if ctx == nil {
		return xid.ID{}, false
	}
	return IDFromCtx(ctx.UserContext())
}

func IDFromCtx(ctx context.Context) (xid.ID, bool) {
	id, ok := ctx.Value(idKey{}).(xid.ID)
	return id, ok
}

func CtxWithID(ctx context.Context, id xid.ID) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// RequestIDHandler assigns every request an xid, logs it under fieldKey and echoes it in
// headerName. An id carried in headerName by the caller is reused.
func RequestIDHandler(fieldKey, headerName string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id, ok := IDFromFiberCtx(ctx)
		if !ok {
			if parsed, err := xid.FromString(ctx.Get(headerName)); err == nil {
				id = parsed
			} else {
				id = xid.New()
			}
			ctx.SetUserContext(CtxWithID(ctx.UserContext(), id))
		}
		FromFiberCtx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str(fieldKey, id.String())
		})
		ctx.Set(headerName, id.String())
		return ctx.Next()
	}
}

// AccessHandler returns a handler that call f after each request.
func AccessHandler(f func(ctx *fiber.Ctx, duration time.Duration)) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()
		f(ctx, time.Since(start))
		return err
	}
}

func WarnFrom(ctx *fiber.Ctx) *zerolog.Event {
	return FromFiberCtx(ctx).Warn()
}

func ErrorFrom(ctx *fiber.Ctx) *zerolog.Event {
	return FromFiberCtx(ctx).Error()
}
