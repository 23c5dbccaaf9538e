package access

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryReplayStore is a TTL-evicted in-process ReplayStore for single-instance runs.
type MemoryReplayStore struct {
	c *cache.Cache
}

func NewMemoryReplayStore(cleanupInterval time.Duration) *MemoryReplayStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &MemoryReplayStore{c: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *MemoryReplayStore) LastSeen(_ context.Context, key string) (time.Time, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return time.Time{}, false, nil
	}
	at, ok := v.(time.Time)
	return at, ok, nil
}

func (s *MemoryReplayStore) MarkSeen(_ context.Context, key string, at time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	s.c.Set(key, at, ttl)
	return nil
}
