package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

const (
	HealthOK       = "ok"
	HealthDisabled = "disabled"
	HealthDown     = "unreachable"
)

var (
	ErrDatabaseNotReachable = errors.New("database not reachable")
	ErrRedisNotReachable    = errors.New("redis not reachable")
)

// Health checks the optional backing services. Services that are not configured are skipped.
type Health struct {
	DB    *bun.DB
	Redis *redis.Client
}

func NewHealth(db *bun.DB, redis *redis.Client) *Health {
	return &Health{
		DB:    db,
		Redis: redis,
	}
}

// Status reports every backing service as ok, disabled or unreachable. The error is set
// when any configured service is unreachable.
func (s *Health) Status(ctx context.Context) (map[string]string, error) {
	status := map[string]string{"database": HealthDisabled, "cache": HealthDisabled}
	var err error

	if s.DB != nil {
		status["database"] = HealthOK
		if pingErr := s.DB.PingContext(ctx); pingErr != nil {
			status["database"] = HealthDown
			err = errors.Wrap(ErrDatabaseNotReachable, pingErr.Error())
		}
	}

	if s.Redis != nil {
		status["cache"] = HealthOK
		if pingErr := s.Redis.Ping(ctx).Err(); pingErr != nil {
			status["cache"] = HealthDown
			if err == nil {
				err = errors.Wrap(ErrRedisNotReachable, pingErr.Error())
			}
		}
	}

	return status, err
}
