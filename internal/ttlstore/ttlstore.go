// Package ttlstore is the shared TTL-cache abstraction backing the edge
// detectors (FingerprintTracker, BehaviorTracker) and the forge's
// cross-customer correlation state. Per the design notes, the
// common surface across detectors is the cache, not the entry: each
// detector supplies its own concrete history type and a constructor
// callback, and the store handles expiry and per-key serialization.
package ttlstore

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is a TTL-keyed map of arbitrary entries with per-key locking, so
// two goroutines racing to update the same address's history serialize
// on that address's lock rather than a global one.
type Store struct {
	cache *gocache.Cache
	locks sync.Map // key string -> *sync.Mutex
	ttl   time.Duration
}

// New constructs a Store with a sliding default TTL and a cleanup sweep
// interval. Individual entries may override the TTL at Update time.
func New(defaultTTL, cleanupInterval time.Duration) *Store {
	s := &Store{
		cache: gocache.New(defaultTTL, cleanupInterval),
		ttl:   defaultTTL,
	}
	s.cache.OnEvicted(func(key string, _ interface{}) {
		s.locks.Delete(key)
	})
	return s
}

func (s *Store) lockFor(key string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Update fetches (or constructs via newEntry) the entry at key, runs fn
// under that key's lock, then re-stores the entry with a sliding TTL of
// d (or the store default when d <= 0). fn mutates entry in place.
func (s *Store) Update(key string, d time.Duration, newEntry func() interface{}, fn func(entry interface{})) {
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	v, ok := s.cache.Get(key)
	if !ok {
		v = newEntry()
	}
	fn(v)
	if d <= 0 {
		d = s.ttl
	}
	s.cache.Set(key, v, d)
}

// Get returns the current entry at key without creating one.
func (s *Store) Get(key string) (interface{}, bool) {
	return s.cache.Get(key)
}

// Len reports the number of live (non-expired) entries — diagnostic only.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}
