package app

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/clovid/prisma-sub000/cmd/app/cli/query"
	"github.com/clovid/prisma-sub000/cmd/app/server"
	"github.com/clovid/prisma-sub000/internal/pkg/bininfo"
)

func Run() {
	app := &cli.App{
		Name:        "prisma",
		Description: "Privacy gated aggregation gateway in front of the VQuest, Campus and remote analysis modules.",
		Version:     bininfo.Version,
		// timespans are comma joined pairs
		DisableSliceFlagSeparator: true,
		Commands: []*cli.Command{
			server.Command(),
			query.AggregateCommand(),
			query.TabsCommand(),
			query.AuditsCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("failed to run app")
	}
}
