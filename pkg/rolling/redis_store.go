package rolling

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const KeyPrefix = "mindful_history:"

// RedisStore keeps each rolling context as a redis list under KeyPrefix+key.
type RedisStore struct {
	rdb      *redis.Client
	capacity int64
}

func NewRedisStore(rdb *redis.Client, capacity int) *RedisStore {
	return &RedisStore{rdb: rdb, capacity: int64(ClampCapacity(capacity))}
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]string, error) {
	labels, err := s.rdb.LRange(ctx, KeyPrefix+key, 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	return labels, nil
}

// Save rewrites the whole list atomically.
func (s *RedisStore) Save(ctx context.Context, key string, labels []string) error {
	fullKey := KeyPrefix + key
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, fullKey)
		if len(labels) == 0 {
			return nil
		}
		values := make([]interface{}, len(labels))
		for i, l := range labels {
			values[i] = l
		}
		pipe.RPush(ctx, fullKey, values...)
		pipe.LTrim(ctx, fullKey, -s.capacity, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save rolling context: %w", err)
	}
	return nil
}
