package infra

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
)

// Redis connects to the shared cache. It returns a nil client when no URL is configured.
func Redis(lc fx.Lifecycle, conf *appconfig.Config) (*redis.Client, error) {
	if conf.RedisURL == "" {
		log.Info().Str("evt.name", "infra.redis.disabled").Msg("no redis url configured, caching in process")
		return nil, nil
	}

	u, err := redis.ParseURL(conf.RedisURL)
	if err != nil {
		log.Error().Err(err).Msg("infra: redis: failed to parse redis url")
		return nil, err
	}

	client := redis.NewClient(u)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Msg("infra: redis: failed to ping database")
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}
