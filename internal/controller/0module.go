package controller

import (
	"go.uber.org/fx"

	controllerv1 "github.com/clovid/prisma-sub000/internal/controller/v1"
)

func Module() fx.Option {
	return fx.Module("controller",
		controllerv1.FxModule(),
	)
}
