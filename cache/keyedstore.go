package cache

import (
	"sync"
	"time"
)

type keyedEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// KeyedStore is a concurrent in-memory keyed store with per-entry TTL. It
// replaces ad-hoc process-wide maps: every entry carries an explicit expiry
// and Sweep keeps the map bounded.
type KeyedStore[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]keyedEntry[V]
}

func NewKeyedStore[K comparable, V any]() *KeyedStore[K, V] {
	return &KeyedStore[K, V]{items: make(map[K]keyedEntry[V])}
}

// Get returns the value if present and not expired.
func (s *KeyedStore[K, V]) Get(key K) (V, bool) {
	var zero V
	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if time.Now().After(entry.expiresAt) {
		s.Delete(key)
		return zero, false
	}
	return entry.value, true
}

// Set stores a value that expires after ttl.
func (s *KeyedStore[K, V]) Set(key K, value V, ttl time.Duration) {
	s.mu.Lock()
	s.items[key] = keyedEntry[V]{value: value, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

// Delete removes an entry.
func (s *KeyedStore[K, V]) Delete(key K) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Sweep drops every expired entry and returns how many were removed.
func (s *KeyedStore[K, V]) Sweep() int {
	now := time.Now()
	removed := 0
	s.mu.Lock()
	for k, entry := range s.items {
		if now.After(entry.expiresAt) {
			delete(s.items, k)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

// Len reports the number of stored entries, expired or not.
func (s *KeyedStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
