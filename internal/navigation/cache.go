package navigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSnapshot is returned when a session has no cached view.
var ErrNoSnapshot = errors.New("navigation: no snapshot")

// Cache keeps one View per session in Redis. A snapshot is only ever
// replaced as a whole.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a session snapshot cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Store replaces the snapshot for sessionID.
func (c *Cache) Store(ctx context.Context, sessionID string, v View) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("navigation: encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(sessionID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("navigation: store snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot for sessionID.
func (c *Cache) Load(ctx context.Context, sessionID string) (View, error) {
	data, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return View{}, ErrNoSnapshot
		}
		return View{}, fmt.Errorf("navigation: load snapshot: %w", err)
	}
	var v View
	if err := json.Unmarshal(data, &v); err != nil {
		return View{}, fmt.Errorf("navigation: decode snapshot: %w", err)
	}
	return v, nil
}

// Drop removes the snapshot for sessionID.
func (c *Cache) Drop(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, c.key(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("navigation: drop snapshot: %w", err)
	}
	return nil
}

func (c *Cache) key(sessionID string) string {
	return "navigation:" + sessionID
}
