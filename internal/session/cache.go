package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
)

// Cache is the pipeline's view of the ephemeral session store. TTL is
// authoritative for session lifecycle; there is no separate close signal.
type Cache interface {
	// ScanKeys returns up to limit keys matching pattern.
	ScanKeys(ctx context.Context, pattern string, limit int) ([]string, error)

	// TTL returns the remaining time-to-live for key. A missing key
	// returns errors.ErrNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Get reads and decodes the session stored at key.
	Get(ctx context.Context, key string) (*ChatSession, error)

	// MarkProcessed rewrites the session with the processed flag set and
	// shortens its TTL so it expires soon instead of lingering for the
	// remainder of its original life.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg config.CacheConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisCache{client: client}
}

func (c *RedisCache) ScanKeys(ctx context.Context, pattern string, limit int) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, int64(limit)).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "scan session keys")
	}
	return keys, nil
}

func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "read ttl")
	}
	if ttl < 0 {
		// -2 key gone, -1 no expiry set; neither is harvestable
		return 0, errors.NotFound("no ttl for key " + key)
	}
	return ttl, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*ChatSession, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, errors.NotFound("session " + key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get session")
	}

	var sess ChatSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, errors.Wrap(err, "decode session "+key)
	}
	sess.Key = key
	return &sess, nil
}

func (c *RedisCache) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	sess, err := c.Get(ctx, key)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	sess.Metadata.Processed = true
	sess.Metadata.ProcessedAt = &now
	sess.Key = ""

	raw, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encode session "+key)
	}

	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return errors.Wrap(err, "rewrite session "+key)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
