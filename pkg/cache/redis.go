package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps snapshot entries in Redis so multiple daemon
// instances sharing a workspace see the same cache. All failures
// degrade to a miss; the caller re-serializes and the daemon keeps
// running without Redis.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) makeKey(systemID string) string {
	return fmt.Sprintf("archgraph:snapshot:%s", systemID)
}

func (c *RedisCache) Get(systemID string) (Entry, bool) {
	key := c.makeKey(systemID)
	ctx := context.Background()
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Failed to GET key %s: %v", key, err)
		}
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		log.Printf("Failed to unmarshal snapshot entry from key %s: %v", key, err)
		return Entry{}, false
	}
	return e, true
}

func (c *RedisCache) Put(systemID string, e Entry) {
	if e.CachedAt.IsZero() {
		e.CachedAt = time.Now().UTC()
	}
	key := c.makeKey(systemID)
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("Failed to marshal snapshot entry: %v", err)
		return
	}
	if err := c.client.Set(context.Background(), key, data, 0).Err(); err != nil {
		log.Printf("Failed to SET key %s: %v", key, err)
	}
}

func (c *RedisCache) Invalidate(systemID string) {
	key := c.makeKey(systemID)
	if err := c.client.Del(context.Background(), key).Err(); err != nil {
		log.Printf("Failed to DEL key %s: %v", key, err)
	}
}
