package places

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-guide/pkg/direction"
)

// Cache memoizes names per grid cell so a walker ticking every few seconds
// does not hit the geocoder on every fix. Errors are not cached.
type Cache struct {
	resolver Resolver
	ttl      time.Duration
	cell     float64
	max      int

	mu      sync.Mutex
	entries map[[2]int64]cacheEntry
}

type cacheEntry struct {
	name    string
	expires time.Time
}

// NewCache wraps r. Points within the same cellDegrees square share a name.
func NewCache(r Resolver, ttl time.Duration, cellDegrees float64, maxEntries int) *Cache {
	if cellDegrees <= 0 {
		cellDegrees = 0.0002
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Cache{
		resolver: r,
		ttl:      ttl,
		cell:     cellDegrees,
		max:      maxEntries,
		entries:  make(map[[2]int64]cacheEntry),
	}
}

// PlaceName implements Resolver.
func (c *Cache) PlaceName(ctx context.Context, p direction.Point) (string, error) {
	key := [2]int64{int64(math.Floor(p.Lat / c.cell)), int64(math.Floor(p.Lng / c.cell))}
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && now.Before(e.expires) {
		c.mu.Unlock()
		return e.name, nil
	}
	c.mu.Unlock()

	name, err := c.resolver.PlaceName(ctx, p)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= c.max {
			c.entries = make(map[[2]int64]cacheEntry)
		}
	}
	c.entries[key] = cacheEntry{name: name, expires: now.Add(c.ttl)}
	return name, nil
}

// Geocode passes through when the wrapped resolver geocodes.
func (c *Cache) Geocode(ctx context.Context, query string) (Place, error) {
	if g, ok := c.resolver.(Geocoder); ok {
		return g.Geocode(ctx, query)
	}
	return Place{}, ErrNotFound
}

var (
	_ Resolver = (*Cache)(nil)
	_ Geocoder = (*Cache)(nil)
)
