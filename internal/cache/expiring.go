// Package cache provides a time-expiring map used to suppress duplicate
// beacons. Expired entries are collected by Tick, which the caller invokes
// opportunistically; there is no background timer.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	val V
	ts  int64 // insertion time [ms]
}

// ExpiringMap maps keys to values with a fixed time-to-live.
type ExpiringMap[K comparable, V any] struct {
	mu        sync.Mutex
	entries   map[K]entry[V]
	ttlMillis int64
	lastSweep int64
	now       func() time.Time
}

// New creates a map whose entries expire after ttl.
func New[K comparable, V any](ttl time.Duration) *ExpiringMap[K, V] {
	return &ExpiringMap[K, V]{
		entries:   make(map[K]entry[V]),
		ttlMillis: ttl.Milliseconds(),
		now:       time.Now,
	}
}

// Insert stores a value, stamping it with the current time.
func (m *ExpiringMap[K, V]) Insert(key K, val V) {
	m.mu.Lock()
	m.entries[key] = entry[V]{val: val, ts: m.now().UnixMilli()}
	m.mu.Unlock()
}

// Contains reports whether the key is present. Entries past their TTL but
// not yet swept still count as present; the sweep bound is the TTL itself.
func (m *ExpiringMap[K, V]) Contains(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

// Get returns the value stored under key.
func (m *ExpiringMap[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e.val, ok
}

// Len returns the number of live entries, swept or not.
func (m *ExpiringMap[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Tick removes entries older than the TTL. The full sweep runs at most once
// per TTL interval regardless of how often Tick is called.
func (m *ExpiringMap[K, V]) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UnixMilli()
	if now-m.lastSweep < m.ttlMillis {
		return
	}
	m.lastSweep = now

	for key, e := range m.entries {
		if now-e.ts > m.ttlMillis {
			delete(m.entries, key)
		}
	}
}
