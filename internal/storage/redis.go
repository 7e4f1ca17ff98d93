package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "acquisition:"

// ResultCache keeps successful provider payloads so a re-dispatched fetch
// activity returns the same record instead of calling the provider again.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ResultCache{client: client, ttl: ttl}
}

func cacheKey(source, applicantID string) string {
	return cacheKeyPrefix + source + ":" + applicantID
}

// Get decodes the cached payload into out. found is false on a miss.
func (c *ResultCache) Get(ctx context.Context, source, applicantID string, out any) (bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(source, applicantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", source, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", source, err)
	}
	return true, nil
}

func (c *ResultCache) Put(ctx context.Context, source, applicantID string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, cacheKey(source, applicantID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put %s: %w", source, err)
	}
	return nil
}

func (c *ResultCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
