package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the number of cached responses.
const DefaultMaxEntries = 256

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

type element struct {
	key   string
	entry *CacheEntry
}

// Manager is an in-memory LRU of page responses.
// It is safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List
	items      map[string]*list.Element
}

// NewManager creates a cache holding at most maxEntries responses.
// A non-positive maxEntries uses DefaultMaxEntries.
func NewManager(maxEntries int) *Manager {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Manager{
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

// Get retrieves a copy of the cache entry for key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (m *Manager) Get(_ context.Context, key CacheKey) (*CacheEntry, error) {
	cacheKey := key.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[cacheKey]
	if !ok {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	e := el.Value.(*element)
	if e.entry.IsExpired() {
		m.removeElement(el)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	m.order.MoveToFront(el)
	CacheHits.Inc()

	return e.entry.Clone(), nil
}

// Set stores a copy of entry. Expired entries are not cached.
func (m *Manager) Set(_ context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.TTL() <= 0 {
		return nil
	}

	cacheKey := key.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[cacheKey]; ok {
		el.Value.(*element).entry = entry.Clone()
		m.order.MoveToFront(el)
		return nil
	}

	m.items[cacheKey] = m.order.PushFront(&element{key: cacheKey, entry: entry.Clone()})
	for m.order.Len() > m.maxEntries {
		m.removeElement(m.order.Back())
		CacheEvictions.Inc()
	}
	CacheEntries.Set(float64(m.order.Len()))

	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(_ context.Context, key CacheKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key.String()]; ok {
		m.removeElement(el)
	}
	return nil
}

// UpdateTTL moves the expiration of an existing entry.
// This is used when a 304 Not Modified response carries a new Expires header.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	entry.Expires = newExpires
	return m.Set(ctx, key, entry)
}

// Len returns the number of entries held, including expired ones not yet evicted.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// removeElement must be called with mu held.
func (m *Manager) removeElement(el *list.Element) {
	m.order.Remove(el)
	delete(m.items, el.Value.(*element).key)
	CacheEntries.Set(float64(m.order.Len()))
}
