package v1

import (
	"go.uber.org/fx"
)

func FxModule() fx.Option {
	return fx.Module("controllers.v1", fx.Invoke(
		RegisterModule,
		RegisterSlice,
		RegisterMeta,
	))
}
