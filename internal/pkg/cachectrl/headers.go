package cachectrl

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Immutable marks a response addressed by a content hash as cacheable for maxAge.
func Immutable(ctx *fiber.Ctx, maxAge time.Duration) {
	ctx.Set(fiber.HeaderCacheControl, "private, immutable, max-age="+strconv.Itoa(int(maxAge.Seconds())))
	ctx.Set(fiber.HeaderExpires, time.Now().Add(maxAge).UTC().Format(time.RFC1123))
}

// OptOut forbids every cache on the way from storing the response.
func OptOut(ctx *fiber.Ctx) {
	ctx.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	ctx.Set(fiber.HeaderPragma, "no-cache")
	ctx.Set(fiber.HeaderExpires, "0")
}
