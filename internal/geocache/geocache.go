// Package geocache implements the two-tier, non-blocking geo lookup
// described in §4.4: a hot map with no TTL backed by a 1-hour sliding TTL
// map that is filled from the relational store (never written back to it),
// with async refill on miss deduplicated by in-flight address.
package geocache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

const (
	ttlTier         = time.Hour
	notFoundTTL     = 15 * time.Minute
	cleanupInterval = 5 * time.Minute
	hotEvictAfter   = 30 * time.Minute
)

// StoreLookup resolves a GeoRecord from the relational store. Returning
// ok=false means "not found", not an error; err is reserved for transient
// I/O failures, which the cache treats the same as a miss but does not
// cache as "not found" (so the next hit retries rather than hot-looping
// on a fixed 15-minute window against a database blip).
type StoreLookup func(ctx context.Context, addr string) (rec hit.GeoRecord, ok bool, err error)

type Cache struct {
	hot     *gocache.Cache // no TTL; bulk-evicted on a timer
	ttlTier *gocache.Cache
	lg      *galog.Logger
	lookup  StoreLookup
	group   singleflight.Group

	missCount  int64
	foundCount int64
}

func New(lg *galog.Logger, lookup StoreLookup) *Cache {
	c := &Cache{
		hot:     gocache.New(gocache.NoExpiration, 0),
		ttlTier: gocache.New(ttlTier, cleanupInterval),
		lg:      lg,
		lookup:  lookup,
	}
	go c.bulkEvictLoop()
	return c
}

func (c *Cache) bulkEvictLoop() {
	t := time.NewTicker(hotEvictAfter)
	defer t.Stop()
	for range t.C {
		c.hot.Flush()
	}
}

// Lookup is non-blocking: it returns whatever is already cached and, on a
// true miss, kicks off an asynchronous refill before returning NotFound.
func (c *Cache) Lookup(addr string) (rec hit.GeoRecord, found bool) {
	if v, ok := c.hot.Get(addr); ok {
		r := v.(hit.GeoRecord)
		return r, r.Found
	}
	if v, ok := c.ttlTier.Get(addr); ok {
		r := v.(hit.GeoRecord)
		if r.Found {
			// slide the 1-hour expiry; not-found entries keep their absolute 15 minutes
			c.ttlTier.Set(addr, r, ttlTier)
		}
		c.hot.SetDefault(addr, r)
		return r, r.Found
	}
	c.asyncRefill(addr)
	return hit.GeoRecord{}, false
}

func (c *Cache) asyncRefill(addr string) {
	go func() {
		// singleflight collapses concurrent misses for the same address
		// into a single store round-trip.
		_, _, _ = c.group.Do(addr, func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			rec, ok, err := c.lookup(ctx, addr)
			if err != nil {
				c.lg.Warn("geo store lookup failed", galog.KV("addr", addr), galog.KVErr(err))
				return nil, nil // do not cache a transient failure as "not found"
			}
			if ok {
				rec.Found = true
				c.ttlTier.Set(addr, rec, ttlTier)
				c.hot.SetDefault(addr, rec)
			} else {
				c.ttlTier.Set(addr, hit.GeoRecord{Found: false}, notFoundTTL)
			}
			return nil, nil
		})
	}()
}
