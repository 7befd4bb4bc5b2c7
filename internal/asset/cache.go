// Package asset caches decoded overlay images by asset reference.
package asset

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/singleflight"
)

type opener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Cache holds decoded overlays. Entries are loaded lazily and only removed by Invalidate.
type Cache struct {
	storage opener

	mu    sync.RWMutex
	items map[string]image.Image
	gens  map[string]uint64 // bumped by Invalidate; a load only inserts into its own generation
	group singleflight.Group
}

// NewCache creates a Cache that loads assets from storage.
func NewCache(storage opener) *Cache {
	return &Cache{
		storage: storage,
		items:   make(map[string]image.Image),
		gens:    make(map[string]uint64),
	}
}

// Get returns the decoded overlay for ref, loading it on first use.
// Concurrent callers share one load, which is not canceled when a caller gives up.
func (c *Cache) Get(ctx context.Context, ref string) (image.Image, error) {
	c.mu.RLock()
	img, ok := c.items[ref]
	gen := c.gens[ref]
	c.mu.RUnlock()
	if ok {
		return img, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fmt.Sprintf("%s@%d", ref, gen), func() (interface{}, error) {
		return c.load(loadCtx, ref, gen)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(image.Image), nil
	}
}

func (c *Cache) load(ctx context.Context, ref string, gen uint64) (image.Image, error) {
	rc, err := c.storage.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open asset %s: %w", ref, err)
	}
	defer rc.Close()

	decoded, err := imaging.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode asset %s: %w", ref, err)
	}

	c.mu.Lock()
	if c.gens[ref] == gen {
		c.items[ref] = decoded
	}
	c.mu.Unlock()

	return decoded, nil
}

// Invalidate drops the cached entry for ref. A load already in flight for
// ref will not repopulate it.
func (c *Cache) Invalidate(ref string) {
	c.mu.Lock()
	delete(c.items, ref)
	c.gens[ref]++
	c.mu.Unlock()
}

// Len reports the number of cached overlays.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
