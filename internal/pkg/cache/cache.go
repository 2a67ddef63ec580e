// Package cache holds the key-value capability shared by every component that memoizes
// upstream state. Values are msgpack encoded in every store so that callers never share
// memory with a cached value.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/clovid/prisma-sub000/internal/pkg/observability"
)

// Forever keeps an entry until it is deleted or evicted by the store.
const Forever time.Duration = 0

var ErrNotFound = errors.New("cache: key not found")

type Store interface {
	// Get decodes the value under key into dest, or returns ErrNotFound.
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

var group singleflight.Group

// Remember returns the value cached under key, or computes it with fn, stores it for ttl and
// returns it. Concurrent misses for the same key share one call to fn. A failing store never
// fails the lookup; fn is used instead.
func Remember[T any](ctx context.Context, s Store, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	kind := kindOf(key)

	var dest T
	err := s.Get(ctx, key, &dest)
	if err == nil {
		observability.CacheLookups.WithLabelValues(kind, "hit").Inc()
		return dest, nil
	}
	if !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed, recomputing value")
	}
	observability.CacheLookups.WithLabelValues(kind, "miss").Inc()

	v, err, _ := group.Do(key, func() (any, error) {
		value, err := fn()
		if err != nil {
			return value, err
		}
		if err := s.Set(ctx, key, value, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func RememberForever[T any](ctx context.Context, s Store, key string, fn func() (T, error)) (T, error) {
	return Remember(ctx, s, key, Forever, fn)
}

// Key joins parts into a cache key. The first part names the kind of entry.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

func kindOf(key string) string {
	kind, _, _ := strings.Cut(key, ":")
	return kind
}
