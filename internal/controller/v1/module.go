package v1

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"

	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/cachectrl"
	"github.com/clovid/prisma-sub000/internal/pkg/middlewares"
	"github.com/clovid/prisma-sub000/internal/server/svr"
	"github.com/clovid/prisma-sub000/internal/service"
)

type Module struct {
	fx.In

	ModuleService *service.Module
}

func RegisterModule(v1 *svr.V1, c Module) {
	v1.Get("/modules", c.GetModules)

	modules := v1.Group("/modules/:module")
	modules.Get("/tasks", c.GetTasks)
	modules.Get("/count", c.GetCount)
	modules.Get("/tasks/:taskId/count", c.GetTaskCount)
	modules.Get("/tasks/:taskId/tabs", c.GetTabs)
	modules.Get("/tasks/:taskId/summary", c.GetSummary)
}

func (c *Module) GetModules(ctx *fiber.Ctx) error {
	return ctx.JSON(c.ModuleService.List())
}

func (c *Module) GetTasks(ctx *fiber.Ctx) error {
	filter, err := parseFilter(ctx)
	if err != nil {
		return err
	}

	tasks, err := c.ModuleService.Tasks(ctx.UserContext(), middlewares.IdentityFromCtx(ctx), ctx.Params("module"), filter)
	if err != nil {
		return err
	}

	return ctx.JSON(tasks)
}

func (c *Module) GetCount(ctx *fiber.Ctx) error {
	return c.count(ctx, "")
}

func (c *Module) GetTaskCount(ctx *fiber.Ctx) error {
	taskID, err := taskIDParam(ctx)
	if err != nil {
		return err
	}
	return c.count(ctx, taskID)
}

func (c *Module) count(ctx *fiber.Ctx, taskID model.ID) error {
	filter, err := parseFilter(ctx)
	if err != nil {
		return err
	}

	count, err := c.ModuleService.CountDatasets(ctx.UserContext(), middlewares.IdentityFromCtx(ctx), ctx.Params("module"), taskID, filter)
	if err != nil {
		return err
	}

	cachectrl.OptOut(ctx)
	return ctx.JSON(fiber.Map{"count": count})
}

func (c *Module) GetTabs(ctx *fiber.Ctx) error {
	taskID, err := taskIDParam(ctx)
	if err != nil {
		return err
	}

	tabs, err := c.ModuleService.SupportedTabs(ctx.UserContext(), ctx.Params("module"), taskID)
	if err != nil {
		return err
	}

	return ctx.JSON(tabs)
}

func (c *Module) GetSummary(ctx *fiber.Ctx) error {
	taskIDs, err := taskIDsParam(ctx)
	if err != nil {
		return err
	}

	filter, err := parseFilter(ctx)
	if err != nil {
		return err
	}

	tree, err := c.ModuleService.SummarizedDatasets(ctx.UserContext(), middlewares.IdentityFromCtx(ctx), ctx.Params("module"), taskIDs, filter)
	if err != nil {
		return err
	}

	cachectrl.OptOut(ctx)
	return ctx.JSON(tree)
}
