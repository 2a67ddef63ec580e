package infra

import (
	"github.com/redis/go-redis/v9"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/pkg/cache"
)

// CacheStore shares cached resources through redis when it is configured and keeps them in
// process otherwise.
func CacheStore(conf *appconfig.Config, client *redis.Client) cache.Store {
	if client == nil {
		return cache.NewMemoryStore()
	}
	return cache.NewRedisStore(client, conf.CachePrefix)
}
