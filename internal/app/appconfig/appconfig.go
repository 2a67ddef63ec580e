package appconfig

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/clovid/prisma-sub000/internal/app/appcontext"
)

const envPrefix = "prisma"

func Parse(ctx appcontext.Ctx) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	var spec ConfigSpec
	if err := envconfig.Process(envPrefix, &spec); err != nil {
		_ = envconfig.Usage(envPrefix, &spec)
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	modules, err := LoadModules(spec.ModulesConfigPath)
	if err != nil {
		return nil, err
	}

	return &Config{
		ConfigSpec: spec,
		Modules:    modules,
		AppContext: ctx,
	}, nil
}
