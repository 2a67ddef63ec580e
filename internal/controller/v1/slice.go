package v1

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"

	"github.com/clovid/prisma-sub000/internal/pkg/cachectrl"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
	"github.com/clovid/prisma-sub000/internal/resource"
	"github.com/clovid/prisma-sub000/internal/server/svr"
)

const sliceMaxAge = 24 * time.Hour

type Slice struct {
	fx.In

	Images  *resource.ImageVolumes
	Clients *remote.Registry
}

func RegisterSlice(v1 *svr.V1, c Slice) {
	v1.Get("/slices/:hash", c.GetSlice)
}

func (c *Slice) GetSlice(ctx *fiber.Ctx) error {
	desc, err := c.Images.Descriptor(ctx.UserContext(), ctx.Params("hash"))
	if err != nil {
		return err
	}

	client, err := c.Clients.Get(desc.Module)
	if err != nil {
		return err
	}

	query := url.Values{}
	for k, v := range desc.Parameter {
		query.Set(k, v)
	}

	raw, err := client.GetRaw(ctx.UserContext(), desc.URL, query)
	if err != nil {
		return err
	}

	if raw.ContentType != "" {
		ctx.Set(fiber.HeaderContentType, raw.ContentType)
	}
	cachectrl.Immutable(ctx, sliceMaxAge)
	return ctx.Send(raw.Body)
}
