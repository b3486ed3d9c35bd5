package quota

import (
	"context"
	"errors"
	"fmt"

	"imagegen/internal/core"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares counts between processes. Each day gets its own key per
// model, expiring after core.QuotaKeyTTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = core.DefaultQuotaKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(day, modelID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, day, modelID)
}

func (s *RedisStore) Count(ctx context.Context, day, modelID string) (int, error) {
	n, err := s.client.Get(ctx, s.key(day, modelID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RedisStore) Increment(ctx context.Context, day, modelID string) (int, error) {
	key := s.key(day, modelID)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, core.QuotaKeyTTL)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}
