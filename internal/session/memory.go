package session

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
)

// MemoryCache is an in-process Cache used by tests and local development.
// TTLs are tracked against a swappable clock instead of a real expiry
// sweep, which is enough for the harvester's eligibility checks.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock overrides the cache clock. Test helper.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *MemoryCache) Put(key string, sess *ChatSession, ttl time.Duration) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{raw: raw, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) ScanKeys(ctx context.Context, pattern string, limit int) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var keys []string
	for key, entry := range c.entries {
		if entry.expiresAt.Before(c.now()) {
			continue
		}
		ok, err := path.Match(pattern, key)
		if err != nil {
			return nil, errors.InvalidInput("bad scan pattern " + pattern)
		}
		if ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

func (c *MemoryCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return 0, errors.NotFound("session " + key)
	}
	remaining := entry.expiresAt.Sub(c.now())
	if remaining <= 0 {
		return 0, errors.NotFound("session " + key)
	}
	return remaining, nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*ChatSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || entry.expiresAt.Before(c.now()) {
		return nil, errors.NotFound("session " + key)
	}

	var sess ChatSession
	if err := json.Unmarshal(entry.raw, &sess); err != nil {
		return nil, errors.Wrap(err, "decode session "+key)
	}
	sess.Key = key
	return &sess, nil
}

func (c *MemoryCache) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	sess, err := c.Get(ctx, key)
	if err != nil {
		return err
	}

	now := c.now().UTC()
	sess.Metadata.Processed = true
	sess.Metadata.ProcessedAt = &now
	sess.Key = ""
	return c.Put(key, sess, ttl)
}
