package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a confirmed-synced cache entry may be trusted to
// skip a re-check.
const DefaultTTL = 7 * 24 * time.Hour

// Status is one cached sync determination. It is never authoritative: any
// correctness decision re-verifies against the ledger.
type Status struct {
	Synced    bool      `json:"synced"`
	CheckedAt time.Time `json:"checked_at"`
}

// StatusCache caches per-evidence sync status. Implementations enforce the
// TTL on read: Get returns nil for absent or expired entries. Clear is
// always safe; the cache is a pure optimization.
type StatusCache interface {
	Get(ctx context.Context, evidenceID string) (*Status, error)
	MarkSynced(ctx context.Context, evidenceID string) error
	Clear(ctx context.Context) error
}

// MemoryCache is the default in-process StatusCache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]Status
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache builds an in-memory cache. ttl <= 0 uses DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[string]Status),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get implements StatusCache. Expired entries are discarded.
func (c *MemoryCache) Get(_ context.Context, evidenceID string) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.entries[evidenceID]
	if !ok {
		return nil, nil
	}
	if c.now().Sub(st.CheckedAt) > c.ttl {
		delete(c.entries, evidenceID)
		return nil, nil
	}
	return &st, nil
}

// MarkSynced implements StatusCache.
func (c *MemoryCache) MarkSynced(_ context.Context, evidenceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[evidenceID] = Status{Synced: true, CheckedAt: c.now()}
	return nil
}

// Clear implements StatusCache.
func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Status)
	return nil
}

// RedisCache is a StatusCache shared across processes. Entries expire server
// side via the key TTL.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisCache builds a redis-backed cache. ttl <= 0 uses DefaultTTL.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "custodix:sync:", now: time.Now}
}

// Get implements StatusCache.
func (c *RedisCache) Get(ctx context.Context, evidenceID string) (*Status, error) {
	data, err := c.rdb.Get(ctx, c.prefix+evidenceID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sync cache get %s: %w", evidenceID, err)
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt entry is just a miss; the cache is non-authoritative.
		return nil, nil
	}
	return &st, nil
}

// MarkSynced implements StatusCache.
func (c *RedisCache) MarkSynced(ctx context.Context, evidenceID string) error {
	data, err := json.Marshal(Status{Synced: true, CheckedAt: c.now()})
	if err != nil {
		return fmt.Errorf("sync cache encode %s: %w", evidenceID, err)
	}
	if err := c.rdb.Set(ctx, c.prefix+evidenceID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("sync cache set %s: %w", evidenceID, err)
	}
	return nil
}

// Clear implements StatusCache.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("sync cache clear: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("sync cache clear: %w", err)
	}
	return nil
}
