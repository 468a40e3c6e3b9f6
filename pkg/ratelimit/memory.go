package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	clients map[string]Usage
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clients: make(map[string]Usage)}
}

// Consume checks and increments under the store lock.
func (s *MemoryStore) Consume(_ context.Context, clientID string, limits Limits, now time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, res := apply(s.clients[clientID], limits, now)
	s.clients[clientID] = u
	return res, nil
}

// Usage returns the live counters for a client.
func (s *MemoryStore) Usage(_ context.Context, clientID string, now time.Time) (Usage, error) {
	s.mu.Lock()
	u := s.clients[clientID]
	s.mu.Unlock()
	return Usage{Hourly: u.Hourly.live(now), Daily: u.Daily.live(now)}, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
