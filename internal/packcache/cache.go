// Package packcache caches mounted packs for long-running callers that would
// otherwise re-parse the same bytes on every file-change event or tool call.
// `packctl watch` holds a cache and invalidates the pack after each rebuild;
// `packctl serve` mounts its pack once directly and does not use packcache.
// pkg/pack.Mount itself stays cache-free; packcache is a wrapper callers opt
// into.
package packcache

import (
	"context"
	"fmt"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/knowpack-dev/knowpack/pkg/pack"
)

// DefaultCapacity is the number of mounted packs kept resident at once.
// A single packctl process typically watches one project's pack, so this
// is generous headroom rather than a tuned limit.
const DefaultCapacity = 8

// entry pairs a mounted pack with the modification time it was mounted at,
// so a later Get can detect the file changed underneath it.
type entry struct {
	pack    *pack.Pack
	modTime int64
}

// Cache holds mounted *pack.Pack values keyed by filesystem path, evicting
// the least recently used entry once Capacity is exceeded.
type Cache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, entry]
}

// New creates a Cache holding up to capacity mounted packs. capacity <= 0
// uses DefaultCapacity.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("create pack cache: %w", err)
	}
	return &Cache{cache: c}, nil
}

// Get returns the pack mounted from path, reusing a cached mount if the
// file's modification time hasn't changed since it was cached.
func (c *Cache) Get(ctx context.Context, path string) (*pack.Pack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	modTime := info.ModTime().UnixNano()

	if e, ok := c.cache.Get(path); ok && e.modTime == modTime {
		return e.pack, nil
	}

	pk, err := pack.Mount(ctx, pack.FromPath(path))
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, entry{pack: pk, modTime: modTime})
	return pk, nil
}

// Invalidate drops path's cached mount, if any, forcing the next Get to
// remount it. Used by `packctl watch` on a detected file-system event.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(path)
}

// Len returns the number of packs currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
