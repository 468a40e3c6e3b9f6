package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestCache(t *testing.T, ttl time.Duration, opts ...Option) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	c, err := New(dbPath, ttl, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	if err := c.Put(ctx, "technical", "Qual a dose de rifampicina?", "600 mg"); err != nil {
		t.Fatal(err)
	}

	got, ok := c.Get(ctx, "technical", "qual a dose de RIFAMPICINA?  ")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != "600 mg" {
		t.Errorf("unexpected response: %s", got)
	}

	// Miss for different persona
	_, ok = c.Get(ctx, "empathetic", "Qual a dose de rifampicina?")
	if ok {
		t.Error("expected cache miss for different persona")
	}
}

func TestTTLExpiration(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCache(t, 5*time.Minute, WithClock(clock.Now))
	ctx := context.Background()

	if err := c.Put(ctx, "technical", "pergunta", "resposta"); err != nil {
		t.Fatal(err)
	}

	clock.t = clock.t.Add(4 * time.Minute)
	if _, ok := c.Get(ctx, "technical", "pergunta"); !ok {
		t.Error("expected hit before TTL")
	}

	clock.t = clock.t.Add(time.Minute)
	if _, ok := c.Get(ctx, "technical", "pergunta"); ok {
		t.Error("expected cache miss after TTL expiration")
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	_ = c.Put(ctx, "technical", "q1", "a1")
	c.Get(ctx, "technical", "q1") // hit
	c.Get(ctx, "technical", "q2") // miss

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestClear(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCache(t, time.Minute, WithClock(clock.Now))
	ctx := context.Background()

	_ = c.Put(ctx, "technical", "old", "1")
	clock.t = clock.t.Add(2 * time.Minute)
	_ = c.Put(ctx, "technical", "new", "2")

	if err := c.Clear(ctx, true); err != nil {
		t.Fatal(err)
	}
	stats, _ := c.Stats(ctx)
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry after expired clear, got %d", stats.Entries)
	}

	if err := c.Clear(ctx, false); err != nil {
		t.Fatal(err)
	}
	stats, _ = c.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("expected 0 entries after clear, got %d", stats.Entries)
	}
}
