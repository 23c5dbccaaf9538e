package access

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReplayStore shares replay state across instances. Values are unix millis.
type RedisReplayStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisReplayStore(rdb *redis.Client, prefix string) *RedisReplayStore {
	if prefix == "" {
		prefix = "replay:"
	}
	return &RedisReplayStore{rdb: rdb, prefix: prefix}
}

func (s *RedisReplayStore) LastSeen(ctx context.Context, key string) (time.Time, bool, error) {
	ms, err := s.rdb.Get(ctx, s.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (s *RedisReplayStore) MarkSeen(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.prefix+key, at.UnixMilli(), ttl).Err()
}
