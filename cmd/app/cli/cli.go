package cli

import (
	"context"

	"go.uber.org/fx"

	"github.com/clovid/prisma-sub000/internal/app"
	"github.com/clovid/prisma-sub000/internal/app/appcontext"
)

// Start builds the application without its HTTP surface and populates targets from it.
// The returned stop function releases the infrastructure connections.
func Start(ctx context.Context, targets ...any) (stop func(), err error) {
	fxApp := app.New(appcontext.Declare(appcontext.EnvCLI), fx.Populate(targets...))
	if err := fxApp.Start(ctx); err != nil {
		return nil, err
	}
	return func() {
		_ = fxApp.Stop(context.Background())
	}, nil
}
