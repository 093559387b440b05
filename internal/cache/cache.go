// Package cache holds the decoration cache for computed directory stats.
//
// Validity is decided by the directory's modification time alone: an entry
// is served while the current mtime equals the one recorded when its
// computation was launched. There is no TTL. Filesystem mtime granularity
// (a second or more on some platforms) can produce false hits for bursts of
// sub-second changes, which the advisory nature of the decorations tolerates.
package cache

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/idelchi/dirhover/internal/dirstat"
	"github.com/idelchi/dirhover/internal/metrics"
)

// Entry is a cached computation result.
type Entry struct {
	// Stats is the computed result, possibly a timed out one.
	Stats dirstat.DirectoryStats
	// Mtime is the directory's modification time when the computation was launched.
	Mtime time.Time
}

// Cache maps cleaned paths to their last computed stats.
//
// Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	metrics metrics.Recorder
}

// New creates an empty cache. A nil recorder disables metrics.
func New(rec metrics.Recorder) *Cache {
	if rec == nil {
		rec = metrics.Noop()
	}

	return &Cache{
		entries: make(map[string]Entry),
		metrics: rec,
	}
}

func key(path string) string {
	return filepath.Clean(path)
}

// Get returns the stats cached for path if they were computed at currentMtime.
//
// An entry with a different mtime is stale and removed.
func (c *Cache) Get(path string, currentMtime time.Time) (dirstat.DirectoryStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(path)

	entry, ok := c.entries[k]
	if !ok {
		c.metrics.CacheLookup(false)

		return dirstat.DirectoryStats{}, false
	}

	if !entry.Mtime.Equal(currentMtime) {
		delete(c.entries, k)
		c.metrics.CacheLookup(false)

		return dirstat.DirectoryStats{}, false
	}

	c.metrics.CacheLookup(true)

	return entry.Stats, true
}

// Put stores stats for path, replacing any previous entry.
func (c *Cache) Put(path string, stats dirstat.DirectoryStats, mtimeAtLaunch time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key(path)] = Entry{Stats: stats, Mtime: mtimeAtLaunch}
}

// InvalidateOne removes the entry for path, if any.
func (c *Cache) InvalidateOne(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(path)
	if _, ok := c.entries[k]; ok {
		delete(c.entries, k)
		c.metrics.CacheInvalidated(metrics.ScopeOne, 1)
	}
}

// InvalidateAll removes every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.entries)
	c.entries = make(map[string]Entry)
	c.metrics.CacheInvalidated(metrics.ScopeAll, removed)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
