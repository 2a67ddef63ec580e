package aggregator

import (
	"go.uber.org/fx"

	"github.com/clovid/prisma-sub000/internal/pkg/remote"
)

func FxModule() fx.Option {
	return fx.Module("aggregator", fx.Provide(
		remote.NewRegistry,
		NewModules,
	))
}
