package v1

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"go.uber.org/fx"

	"github.com/clovid/prisma-sub000/internal/pkg/bininfo"
	"github.com/clovid/prisma-sub000/internal/server/svr"
	"github.com/clovid/prisma-sub000/internal/service"
)

type Meta struct {
	fx.In

	HealthService *service.Health
	ModuleService *service.Module
}

func RegisterMeta(v1 *svr.V1, c Meta) {
	v1.Get("/bininfo", c.BinInfo)

	v1.Get("/health", cache.New(cache.Config{
		Expiration: time.Second,
	}), c.Health)
}

func (c *Meta) BinInfo(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"version": bininfo.Version,
		"build":   bininfo.BuildTime,
		"modules": len(c.ModuleService.List()),
	})
}

// Health answers 503 while a configured backing service is unreachable. Upstream modules
// are not probed; their failures degrade single responses instead.
func (c *Meta) Health(ctx *fiber.Ctx) error {
	status, err := c.HealthService.Status(ctx.UserContext())
	if err != nil {
		log.Ctx(ctx.UserContext()).Warn().Err(err).Str("evt.name", "health.degraded").Msg("backing service unreachable")
		ctx.Status(fiber.StatusServiceUnavailable)
	}

	return ctx.JSON(fiber.Map{
		"status":   lo.Ternary(err != nil, "degraded", "ok"),
		"services": status,
	})
}
