package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// ── Cache Tests ──

func TestCacheSetGet(t *testing.T) {
	c := NewCache[int](time.Minute)
	c.Set("a", 1)

	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses; want 1, 1", hits, misses)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache[string](time.Minute)
	c.SetWithTTL("k", "v", -time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry should not be returned")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d before cleanup, want 1", c.Len())
	}
	c.Cleanup()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after cleanup, want 0", c.Len())
	}
}

func TestCacheInvalidateAndFlush(t *testing.T) {
	c := NewCache[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("invalidated key still present")
	}
	c.Flush()
	if c.Len() != 0 {
		t.Errorf("Len() after Flush = %d", c.Len())
	}
}

// ── Store Tests ──

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "series:KO"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get on empty store = %v, want ErrCacheMiss", err)
	}
	if err := s.Set(ctx, "series:KO", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, err := s.Get(ctx, "series:KO")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Get = %q, want payload", got)
	}
	if err := s.Delete(ctx, "series:KO"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Get(ctx, "series:KO"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after Delete = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	testStore(t, s)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, "test:")
	defer s.Close()

	testStore(t, s)

	ctx := context.Background()
	if err := s.Set(ctx, "ttl", []byte("x"), time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if !mr.Exists("test:ttl") {
		t.Error("key should be stored under the prefix")
	}
	mr.FastForward(2 * time.Minute)
	if _, err := s.Get(ctx, "ttl"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after TTL = %v, want ErrCacheMiss", err)
	}
}

func TestNewRedisStorePing(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedisStore error: %v", err)
	}
	s.Close()

	mr.Close()
	if _, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr}); err == nil {
		t.Error("NewRedisStore should fail when the server is down")
	}
}
