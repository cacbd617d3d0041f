package structuring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/garyjia/pe-report-extractor/internal/record"
	"github.com/garyjia/pe-report-extractor/internal/template"
)

// Cache stores accepted records by fingerprint. Implementations must be
// safe for concurrent use; concurrent writers of one key resolve as
// last-writer-wins.
type Cache interface {
	Get(ctx context.Context, key string) (record.Value, bool, error)
	Set(ctx context.Context, key string, rec record.Value) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
}

// Fingerprint identifies a structuring request by its combined source text
// and template.
func Fingerprint(combined string, id template.ID) string {
	sum := sha256.Sum256([]byte(combined + "_" + id.String()))
	return hex.EncodeToString(sum[:])
}

// Memory cache defaults.
const (
	DefaultCacheCapacity = 256
	DefaultCacheTTL      = 24 * time.Hour
)

// MemoryCache is a bounded LRU with optional expiry. Records are copied on
// the way in and out so callers never share a tree with the cache.
type MemoryCache struct {
	lru *expirable.LRU[string, record.Value]
}

// NewMemoryCache creates a cache holding at most capacity entries, each
// living for ttl. A non-positive capacity selects the default; a
// non-positive ttl disables expiry.
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &MemoryCache{lru: expirable.NewLRU[string, record.Value](capacity, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (record.Value, bool, error) {
	rec, ok := c.lru.Get(key)
	if !ok {
		return record.Value{}, false, nil
	}
	return rec.Clone(), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, rec record.Value) error {
	c.lru.Add(key, rec.Clone())
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) (int, error) {
	n := c.lru.Len()
	c.lru.Purge()
	return n, nil
}

// Len counts entries not yet evicted. Expired entries are dropped by the
// LRU's background sweep shortly after their deadline.
func (c *MemoryCache) Len(_ context.Context) (int, error) {
	return c.lru.Len(), nil
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (record.Value, bool, error) {
	return record.Value{}, false, nil
}
func (NoopCache) Set(context.Context, string, record.Value) error { return nil }
func (NoopCache) Delete(context.Context, string) error            { return nil }
func (NoopCache) Clear(context.Context) (int, error)              { return 0, nil }
func (NoopCache) Len(context.Context) (int, error)                { return 0, nil }
