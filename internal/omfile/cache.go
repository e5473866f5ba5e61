package omfile

import (
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Cache is the process-wide handle pool. Entries are keyed by path and
// validated against the current inode on every acquire, so a handle
// superseded by a rename is dropped from the cache but stays mapped
// until its last reader releases it.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, *Handle]
	group singleflight.Group
}

// NewCache creates a handle cache holding at most capacity open files.
func NewCache(capacity int) (*Cache, error) {
	c := &Cache{}
	l, err := lru.NewWithEvict(capacity, func(_ string, h *Handle) {
		h.Release() // drop the cache's reference; unmaps once readers finish
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// Acquire returns an open handle for path, holding one reference the
// caller must Release. Missing files return the underlying *PathError
// satisfying os.IsNotExist.
func (c *Cache) Acquire(path string) (*Handle, error) {
	for {
		fi, err := os.Stat(path)
		if err != nil {
			c.Invalidate(path)
			return nil, err
		}

		c.mu.Lock()
		if h, ok := c.lru.Get(path); ok {
			if !h.stale(fi) && h.retainIfLive() {
				c.mu.Unlock()
				return h, nil
			}
			c.lru.Remove(path)
		}
		c.mu.Unlock()

		// Concurrent acquires of the same path share one Open. Open's
		// initial reference becomes the cache's.
		_, err, _ = c.group.Do(path, func() (any, error) {
			h, err := Open(path)
			if err != nil {
				return nil, err
			}
			c.mu.Lock()
			c.lru.Add(path, h)
			c.mu.Unlock()
			return h, nil
		})
		if err != nil {
			return nil, err
		}
		// Loop to retake a reference under the lock; the freshly opened
		// handle may already have been evicted under cache pressure, in
		// which case the next pass reopens.
	}
}

// Invalidate removes path from the cache, forcing the next Acquire to
// reopen. Writers call this after renaming a replacement into place.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	c.lru.Remove(path)
	c.mu.Unlock()
}

// Close releases every cached handle.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
