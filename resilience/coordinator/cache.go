package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates no cached payload exists for the dog.
var ErrCacheMiss = errors.New("coordinator: cache miss")

const cacheKeyPrefix = "pawcontrol:dog_data:"

// Cache stores the last known good payload per dog in Redis.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCache creates a cache on the given Redis client. A non-positive ttl
// keeps entries until overwritten.
func NewCache(client redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(dogID string) string {
	return cacheKeyPrefix + dogID
}

// Store persists the payload as the dog's last known good data.
func (c *Cache) Store(ctx context.Context, data DogData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling dog data for %s: %w", data.DogID, err)
	}

	if err := c.client.Set(ctx, cacheKey(data.DogID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching dog data for %s: %w", data.DogID, err)
	}

	return nil
}

// Load returns the dog's last known good payload, or ErrCacheMiss.
func (c *Cache) Load(ctx context.Context, dogID string) (DogData, error) {
	raw, err := c.client.Get(ctx, cacheKey(dogID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DogData{}, ErrCacheMiss
	}

	if err != nil {
		return DogData{}, fmt.Errorf("loading cached dog data for %s: %w", dogID, err)
	}

	var data DogData
	if err := json.Unmarshal(raw, &data); err != nil {
		return DogData{}, fmt.Errorf("decoding cached dog data for %s: %w", dogID, err)
	}

	return data, nil
}
