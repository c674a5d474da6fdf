// Package imagecache holds cropped puzzle images in memory between the fetch
// request and the tile renders that follow it.
package imagecache

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrNotFound covers both ids that never existed and ids whose entry has
	// expired; callers must not be able to tell the difference.
	ErrNotFound = errors.New("GAMBAR_TIDAK_DITEMUKAN: image not in cache")
	ErrCapacity = errors.New("CACHE_PENUH: image cache is at capacity")
)

const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxEntries = 256
)

type entry struct {
	data        []byte
	contentType string
	storedAt    time.Time
}

// Cache is a mutex-guarded expiring byte store. Expiry is checked lazily on
// Get; Sweep exists only to reclaim memory and is not needed for correctness.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// New builds a cache. Non-positive ttl or maxEntries fall back to the
// defaults (30 minutes, 256 entries).
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Put stores data under a fresh id of the form img_<photoID>_<unixms> and
// returns the id. The embedded timestamp is the insertion time the expiry
// window counts from. Returns ErrCapacity when the cache is full even after
// dropping expired entries.
func (c *Cache) Put(photoID string, data []byte, contentType string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	if len(c.entries) >= c.maxEntries {
		return "", ErrCapacity
	}

	id := fmt.Sprintf("img_%s_%d", photoID, now.UnixMilli())
	for n := 1; ; n++ {
		if _, taken := c.entries[id]; !taken {
			break
		}
		// Same photo cached twice within one millisecond.
		id = fmt.Sprintf("img_%s_%d-%d", photoID, now.UnixMilli(), n)
	}

	c.entries[id] = entry{
		data:        data,
		contentType: contentType,
		storedAt:    now,
	}
	return id, nil
}

// Get returns the stored bytes and content type, or ErrNotFound if the id is
// unknown or the entry is older than the expiry window.
func (c *Cache) Get(id string) ([]byte, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, "", ErrNotFound
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, id)
		return nil, "", ErrNotFound
	}
	return e.data, e.contentType, nil
}

// Sweep drops all expired entries and reports how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

// Len reports the number of live (unexpired) entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	live := 0
	for _, e := range c.entries {
		if now.Sub(e.storedAt) < c.ttl {
			live++
		}
	}
	return live
}

func (c *Cache) sweepLocked(now time.Time) int {
	removed := 0
	for id, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}
