package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roteiro-ai/roteiro/pkg/models"
)

// Memory is an in-process Cache with lazy expiry and an optional LRU bound.
type Memory struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type memoryEntry struct {
	key       string
	entry     models.CacheEntry
	expiresAt time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates a Memory cache. maxEntries <= 0 leaves it unbounded.
func NewMemory(ttl time.Duration, maxEntries int, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get returns the cached answer if present and not expired.
func (m *Memory) Get(_ context.Context, persona, question string) (string, bool) {
	key := Key(persona, question)

	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		m.misses.Add(1)
		return "", false
	}
	e := el.Value.(*memoryEntry)
	if !m.now().Before(e.expiresAt) {
		m.removeElement(el)
		m.misses.Add(1)
		return "", false
	}
	m.lru.MoveToFront(el)
	m.hits.Add(1)
	return e.entry.Response, true
}

// Put stores an answer, replacing any previous one for the same key.
func (m *Memory) Put(_ context.Context, persona, question, response string) error {
	key := Key(persona, question)
	now := m.now()
	e := &memoryEntry{
		key: key,
		entry: models.CacheEntry{
			Key:       key,
			Persona:   persona,
			Response:  response,
			CreatedAt: now,
		},
		expiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		el.Value = e
		m.lru.MoveToFront(el)
		return nil
	}
	m.entries[key] = m.lru.PushFront(e)
	if m.maxEntries > 0 {
		for m.lru.Len() > m.maxEntries {
			m.removeElement(m.lru.Back())
		}
	}
	return nil
}

// Stats returns cache performance metrics.
func (m *Memory) Stats(_ context.Context) (models.CacheStats, error) {
	m.mu.Lock()
	n := len(m.entries)
	m.mu.Unlock()
	return models.CacheStats{
		Entries: int64(n),
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
	}, nil
}

// Clear removes entries.
func (m *Memory) Clear(_ context.Context, expiredOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !expiredOnly {
		m.entries = make(map[string]*list.Element)
		m.lru.Init()
		return nil
	}
	now := m.now()
	for el := m.lru.Front(); el != nil; {
		next := el.Next()
		if !now.Before(el.Value.(*memoryEntry).expiresAt) {
			m.removeElement(el)
		}
		el = next
	}
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func (m *Memory) removeElement(el *list.Element) {
	m.lru.Remove(el)
	delete(m.entries, el.Value.(*memoryEntry).key)
}
