package walker

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultCacheCapacity bounds a ContentCache built with capacity <= 0.
const DefaultCacheCapacity = 512

// CacheStats holds cache statistics
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int64
}

// ContentCache keeps file contents keyed by path and modification time.
// When full, the oldest insertion is evicted. A changed mtime is a miss and
// replaces the stale entry.
type ContentCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	order    []string // insertion order, oldest first
	capacity int
	stats    CacheStats
}

type cacheEntry struct {
	modTime time.Time
	content string
}

// NewContentCache creates a cache holding at most capacity files
func NewContentCache(capacity int) *ContentCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &ContentCache{
		entries:  make(map[string]*cacheEntry),
		capacity: capacity,
	}
}

// Get returns the cached content of path if it was stored with modTime
func (c *ContentCache) Get(path string, modTime time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok || !entry.modTime.Equal(modTime) {
		c.stats.Misses++
		return "", false
	}
	c.stats.Hits++
	return entry.content, true
}

// Set stores content for (path, modTime), evicting the oldest entry when
// the cache is at capacity
func (c *ContentCache) Set(path string, modTime time.Time, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[path]; ok {
		entry.modTime = modTime
		entry.content = content
		return
	}

	for len(c.entries) >= c.capacity && len(c.order) > 0 {
		c.evictOldest()
	}

	c.entries[path] = &cacheEntry{modTime: modTime, content: content}
	c.order = append(c.order, path)
	c.stats.Size = int64(len(c.entries))
}

// Stats returns cache statistics
func (c *ContentCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len returns the number of cached files
func (c *ContentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ContentCache) evictOldest() {
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
	c.stats.Size = int64(len(c.entries))
	log.Debug().Str("file", oldest).Msg("evicted cached content")
}
