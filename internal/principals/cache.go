package principals

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps loaded principal records in Redis between requests. A nil Cache
// or one without a client is a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached record for id.
func (c *Cache) Get(ctx context.Context, id int64) (User, bool, error) {
	if c == nil || c.client == nil {
		return User{}, false, nil
	}
	payload, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	var u User
	if err := json.Unmarshal(payload, &u); err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

// Generation returns the invalidation counter of id. Loaders read it
// before the database and pass it to SetAt.
func (c *Cache) Generation(ctx context.Context, id int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	n, err := c.client.Get(ctx, c.generationKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// SetAt stores u only while the generation of u.ID still equals gen, so a
// record read before a later Invalidate is never written back. It reports
// whether the record was stored.
func (c *Cache) SetAt(ctx context.Context, u User, gen int64) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return false, err
	}
	genKey := c.generationKey(u.ID)
	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(u.ID), raw, c.ttl)
			return nil
		})
		stored = err == nil
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// Invalidate drops the record for id and bumps its generation so that
// loads already in flight cannot store what they read.
func (c *Cache) Invalidate(ctx context.Context, id int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.generationKey(id))
		pipe.Del(ctx, c.key(id))
		return nil
	})
	return err
}

func (c *Cache) key(id int64) string {
	return "principal:" + strconv.FormatInt(id, 10)
}

func (c *Cache) generationKey(id int64) string {
	return "principal:gen:" + strconv.FormatInt(id, 10)
}
