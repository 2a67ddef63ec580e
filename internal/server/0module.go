package server

import (
	"go.uber.org/fx"

	"github.com/clovid/prisma-sub000/internal/server/httpserver"
	"github.com/clovid/prisma-sub000/internal/server/svr"
)

func Module() fx.Option {
	return fx.Module("server",
		fx.Provide(httpserver.Create),
		fx.Provide(svr.CreateEndpointGroups))
}
