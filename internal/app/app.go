package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/clovid/prisma-sub000/internal/aggregator"
	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/app/appcontext"
	"github.com/clovid/prisma-sub000/internal/controller"
	"github.com/clovid/prisma-sub000/internal/infra"
	"github.com/clovid/prisma-sub000/internal/pkg/logger"
	"github.com/clovid/prisma-sub000/internal/repo"
	"github.com/clovid/prisma-sub000/internal/resource"
	"github.com/clovid/prisma-sub000/internal/server"
	"github.com/clovid/prisma-sub000/internal/service"
)

func Options(ctx appcontext.Ctx, additionalOpts ...fx.Option) []fx.Option {
	conf, err := appconfig.Parse(ctx)
	if err != nil {
		panic(err)
	}

	// logger and configuration are the only two things that are not in the fx graph
	// because some other packages need them to be initialized before fx starts
	logger.Configure(conf)

	baseOpts := []fx.Option{
		// fx meta
		fx.WithLogger(logger.Fx),

		// Misc
		fx.Supply(conf),

		// Infrastructures
		infra.Module(),

		// Repositories
		repo.Module(),

		// Upstream resources and aggregation
		resource.Module(),
		aggregator.FxModule(),

		// Services
		service.FxModule(),

		// Global Singleton Inits: Keep those before controllers to ensure they are initialized
		// before controllers are registered as controllers are also fx#Invoke functions which
		// are called in the order of their registration.
		fx.Invoke(infra.SentryInit),
		fx.Invoke(infra.TracerProvider),

		// fx Extra Options
		fx.StartTimeout(15 * time.Second),
		fx.StopTimeout(conf.HTTPServerShutdownTimeout + 5*time.Second),
	}

	if ctx.Env == appcontext.EnvServer {
		baseOpts = append(baseOpts,
			// Servers
			server.Module(),

			// Controllers
			controller.Module(),
		)
	}

	return append(baseOpts, additionalOpts...)
}

func New(ctx appcontext.Ctx, additionalOpts ...fx.Option) *fx.App {
	return fx.New(Options(ctx, additionalOpts...)...)
}
