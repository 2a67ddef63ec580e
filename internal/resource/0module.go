package resource

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("resource", fx.Provide(
		NewStaticCache,
		NewImageVolumes,
	))
}
