package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries is the soft capacity used when none is configured.
const DefaultMaxEntries = 1000

// entry is a stored value with its expiry bookkeeping.
type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

// expired reports whether the entry is stale at the given instant.
func (e entry[V]) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Store is an in-memory key/value store with per-entry TTL.
//
// Expiry is deterministic and lazy: an expired entry is deleted by whichever
// reader observes it first, and a cleanup pass over all entries runs when a
// write finds the store at capacity. The capacity is soft - if cleanup frees
// nothing, the write still succeeds.
//
// A Store is safe for concurrent use. The zero value is not usable; create
// stores with NewStore.
type Store[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	maxEntries int
	now        func() time.Time
}

// NewStore creates a store with the given soft capacity.
// maxEntries <= 0 selects DefaultMaxEntries.
func NewStore[V any](maxEntries int) *Store[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store[V]{
		entries:    make(map[string]entry[V]),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// SetClock replaces the store's time source (for testing).
func (s *Store[V]) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Set stores value under key with the given TTL, overwriting any existing
// entry. A non-positive TTL stores nothing.
func (s *Store[V]) Set(key Key, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if _, exists := s.entries[k]; !exists && len(s.entries) >= s.maxEntries {
		s.cleanupLocked()
	}

	s.entries[k] = entry[V]{
		value:    value,
		storedAt: s.now(),
		ttl:      ttl,
	}
	cacheEntries.Set(float64(len(s.entries)))
}

// Get returns the value stored under key if present and unexpired.
// An expired entry is deleted on read, so every subsequent reader observes
// the same miss.
func (s *Store[V]) Get(key Key) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	e, ok := s.entries[k]
	if !ok {
		cacheMisses.Inc()
		var zero V
		return zero, false
	}

	if e.expired(s.now()) {
		delete(s.entries, k)
		cacheEntries.Set(float64(len(s.entries)))
		cacheEvictions.WithLabelValues("expired").Inc()
		cacheMisses.Inc()
		var zero V
		return zero, false
	}

	cacheHits.Inc()
	return e.value, true
}

// Delete removes the entry for key, if any.
func (s *Store[V]) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key.String()]; ok {
		delete(s.entries, key.String())
		cacheEntries.Set(float64(len(s.entries)))
		cacheEvictions.WithLabelValues("explicit").Inc()
	}
}

// DeletePrefix removes every entry whose key starts with prefix and returns
// the number of entries removed.
func (s *Store[V]) DeletePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			removed++
		}
	}
	if removed > 0 {
		cacheEntries.Set(float64(len(s.entries)))
		cacheEvictions.WithLabelValues("explicit").Add(float64(removed))
	}
	return removed
}

// Clear removes all entries.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = make(map[string]entry[V])
	cacheEntries.Set(0)
	cacheEvictions.WithLabelValues("explicit").Add(float64(n))
}

// Len returns the number of stored entries, including any not yet observed
// as expired.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// cleanupLocked deletes all expired entries. Caller holds s.mu.
func (s *Store[V]) cleanupLocked() {
	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	if removed > 0 {
		cacheEvictions.WithLabelValues("cleanup").Add(float64(removed))
	}
}
