// Package cache provides a generation-tagged memoization cache.
//
// Every entry is tagged with the generation that was current when its load
// started. Clear bumps the generation, so a value whose load straddles a Clear
// is discarded instead of resurrecting stale data. Concurrent misses on the
// same key share a single load.
package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/canonica-labs/pace/internal/observability"
)

// DefaultSize bounds a Memo created with a non-positive size.
const DefaultSize = 128

type entry[V any] struct {
	gen   uint64
	value V
}

// Memo memoizes values by key within the current generation.
type Memo[K comparable, V any] struct {
	name    string
	metrics *observability.Metrics

	mu      sync.Mutex
	gen     uint64
	entries *lru.Cache[K, entry[V]]

	group singleflight.Group
}

// New creates a Memo holding at most size entries (least recently used evicted).
// name labels the cache in metrics.
func New[K comparable, V any](name string, size int, metrics *observability.Metrics) (*Memo[K, V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[K, entry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}
	return &Memo[K, V]{
		name:    name,
		metrics: metrics,
		entries: entries,
	}, nil
}

// Get returns the value cached for key in the current generation.
func (m *Memo[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(key)
}

func (m *Memo[K, V]) getLocked(key K) (V, bool) {
	e, ok := m.entries.Get(key)
	if !ok || e.gen != m.gen {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetOrLoad returns the cached value for key, calling load on a miss.
// Concurrent misses for the same key and generation share one load call.
// Errors are returned to every waiter and never cached. hit reports whether
// the value came from the cache without waiting on a load.
func (m *Memo[K, V]) GetOrLoad(key K, load func() (V, error)) (value V, hit bool, err error) {
	m.mu.Lock()
	if v, ok := m.getLocked(key); ok {
		m.mu.Unlock()
		m.metrics.CacheLookup(m.name, true)
		return v, true, nil
	}
	gen := m.gen
	m.mu.Unlock()
	m.metrics.CacheLookup(m.name, false)

	res, err, _ := m.group.Do(fmt.Sprintf("%d/%v", gen, key), func() (any, error) {
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		m.store(gen, key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return res.(V), false, nil
}

// store records value only if no Clear happened since the load began.
func (m *Memo[K, V]) store(gen uint64, key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.entries.Add(key, entry[V]{gen: gen, value: value})
}

// Clear drops every entry and starts a new generation.
func (m *Memo[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.entries.Purge()
}

// Generation returns the current generation.
func (m *Memo[K, V]) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Len returns the number of live entries.
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len()
}
