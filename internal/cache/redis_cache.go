package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// cacheKey normalizes the request so trivially different phrasings of
// the same text (case, surrounding whitespace) share an entry.
func cacheKey(request string) string {
	normalized := strings.ToLower(strings.TrimSpace(request))
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("translation:%s", hex.EncodeToString(sum[:]))
}

func (c *RedisCache) Get(ctx context.Context, request string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, cacheKey(request)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Store(ctx context.Context, request, statement string) error {
	return c.rdb.Set(ctx, cacheKey(request), statement, c.ttl).Err()
}
