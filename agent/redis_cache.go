package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// RedisCache keys entries as cache:<generation>:<url>, so a generation is
// dropped by deleting its key prefix.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func cacheKey(generation, key string) string {
	return "cache:" + generation + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, generation, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, cacheKey(generation, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return data, true, nil
}

func (c *RedisCache) Put(ctx context.Context, generation, key string, body []byte) error {
	if err := c.rdb.Set(ctx, cacheKey(generation, key), body, 0).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (c *RedisCache) Generations(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var gens []string

	iter := c.rdb.Scan(ctx, 0, "cache:*", 0).Iterator()
	for iter.Next(ctx) {
		parts := strings.SplitN(iter.Val(), ":", 3)
		if len(parts) < 3 {
			continue
		}
		if !seen[parts[1]] {
			seen[parts[1]] = true
			gens = append(gens, parts[1])
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan cache keys: %w", err)
	}
	return gens, nil
}

func (c *RedisCache) DropGeneration(ctx context.Context, generation string) error {
	iter := c.rdb.Scan(ctx, 0, "cache:"+generation+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("drop cache key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan generation %s: %w", generation, err)
	}
	return nil
}
