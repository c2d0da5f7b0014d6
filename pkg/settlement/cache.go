package settlement

import (
	"fmt"
	"sync"
	"time"

	"github.com/chainsafe/settlement-switch/pkg/bridge"
	"github.com/chainsafe/settlement-switch/pkg/router"
)

// cachedRoutes is one cache entry. Validity is derived from cachedAt and the
// cache's TTL at lookup time, never stored as a flag.
type cachedRoutes struct {
	routes   []*bridge.Route
	cachedAt time.Time
}

// routeCache is a best-effort, advisory cache of route query results. A stale
// hit inside the TTL is an accepted trade-off for reduced adapter load; lost
// writes under races are harmless.
type routeCache struct {
	mu      sync.RWMutex
	entries map[string]cachedRoutes
	ttl     time.Duration
}

func newRouteCache(ttl time.Duration) *routeCache {
	return &routeCache{
		entries: make(map[string]cachedRoutes),
		ttl:     ttl,
	}
}

// cacheKey identifies a query by its full parameter set.
func cacheKey(req router.Request, maxRoutes int) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d",
		req.TokenIn, req.TokenOut, req.Amount, req.SrcChain, req.DstChain, req.Mode, maxRoutes)
}

// get returns the cached routes when the entry is still inside the TTL.
// Expiry is evaluated lazily here; there is no background eviction.
func (c *routeCache) get(key string, now time.Time) ([]*bridge.Route, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	ttl := c.ttl
	c.mu.RUnlock()

	if !ok || now.Sub(entry.cachedAt) >= ttl {
		return nil, false
	}
	return entry.routes, true
}

func (c *routeCache) put(key string, routes []*bridge.Route, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedRoutes{routes: routes, cachedAt: now}
}

func (c *routeCache) setTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

func (c *routeCache) currentTTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}
