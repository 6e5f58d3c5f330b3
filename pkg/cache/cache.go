// Package cache holds pre-serialized Format-E snapshots so the hot
// path (building an agent prompt) never re-walks the graph. Coherence
// is the store's job: every committed diff invalidates the entry for
// its system before the apply returns.
package cache

import (
	"sync"
	"time"
)

// Entry is a cached serialization plus the stats cheap enough to keep
// alongside it.
type Entry struct {
	Text      string
	Version   int64
	NodeCount int
	EdgeCount int
	CachedAt  time.Time
}

// SnapshotCache is keyed by system semantic ID. Implementations must
// be safe for concurrent use.
type SnapshotCache interface {
	Get(systemID string) (Entry, bool)
	Put(systemID string, e Entry)
	Invalidate(systemID string)
}

// MemoryCache is the default backend: a map under an RWMutex. Entries
// live until invalidated; there is no TTL because the store owns
// coherence.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (c *MemoryCache) Get(systemID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[systemID]
	return e, ok
}

func (c *MemoryCache) Put(systemID string, e Entry) {
	if e.CachedAt.IsZero() {
		e.CachedAt = time.Now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[systemID] = e
}

func (c *MemoryCache) Invalidate(systemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, systemID)
}
