package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "taxcase/pkg/domain"
)

const keyPrefix = "principal:"

// RedisCache is a Cache backed by Redis string keys with a TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(userID id.UserID) string {
	return keyPrefix + userID.String()
}

func (c *RedisCache) Get(ctx context.Context, userID id.UserID) (Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("redis get principal: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode cached principal: %w", err)
	}
	return snap, true, nil
}

func (c *RedisCache) Set(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode principal: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(snap.UserID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set principal: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, userID id.UserID) error {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del principal: %w", err)
	}
	return nil
}
