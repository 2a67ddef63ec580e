package service

import (
	"go.uber.org/fx"
)

func FxModule() fx.Option {
	return fx.Module("service", fx.Provide(
		NewHealth,
		NewModule,
		NewPrivacy,
		NewCollection,
	))
}
