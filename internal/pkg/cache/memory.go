package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/vmihailenco/msgpack/v5"
)

// MemoryStore keeps entries in process. It backs single-instance deployments and tests.
type MemoryStore struct {
	c *gocache.Cache
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		c: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string, dest any) error {
	v, ok := m.c.Get(key)
	if !ok {
		return ErrNotFound
	}
	return msgpack.Unmarshal(v.([]byte), dest)
}

func (m *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	b, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, b, ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *MemoryStore) Len() int {
	return m.c.ItemCount()
}

func (m *MemoryStore) Clear(context.Context) error {
	m.c.Flush()
	return nil
}
