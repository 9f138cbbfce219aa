package redisStore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestClientOptions(t *testing.T) {
	t.Run("address and password", func(t *testing.T) {
		t.Setenv("REDIS_URL", "")
		t.Setenv("REDIS_ADDR", "cache.internal:6380")
		t.Setenv("REDIS_PASSWORD", "s3cret")

		opts, err := clientOptions(1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if opts.Addr != "cache.internal:6380" || opts.Password != "s3cret" || opts.DB != 1 {
			t.Errorf("unexpected options addr=%s db=%d", opts.Addr, opts.DB)
		}
		if !opts.ContextTimeoutEnabled || opts.ReadTimeout != clientTimeout {
			t.Error("timeouts not applied")
		}
	})

	t.Run("url wins and keeps the store database", func(t *testing.T) {
		t.Setenv("REDIS_URL", "redis://:pw@10.0.0.5:6379/7")
		t.Setenv("REDIS_ADDR", "ignored:1")

		opts, err := clientOptions(0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if opts.Addr != "10.0.0.5:6379" || opts.Password != "pw" {
			t.Errorf("url not used, got addr=%s", opts.Addr)
		}
		if opts.DB != 0 {
			t.Errorf("expected db 0, got %d", opts.DB)
		}
	})

	t.Run("bad url", func(t *testing.T) {
		t.Setenv("REDIS_URL", "http://nope")
		if _, err := clientOptions(0); err == nil {
			t.Error("expected an error for a non redis url")
		}
	})
}

func TestGetRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	first := GetRedisStore(ctx, 3)
	if first == nil {
		t.Fatal("expected a store for a reachable redis")
	}
	if again := GetRedisStore(ctx, 3); again != first {
		t.Error("expected the cached store on the second call")
	}
	if err := first.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for {
		storesMu.Lock()
		_, open := stores[3]
		storesMu.Unlock()
		if !open {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("store was not closed after the context ended")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGetRedisStore_Offline(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	t.Setenv("REDIS_URL", "redis://"+addr)

	if s := GetRedisStore(context.Background(), 4); s != nil {
		t.Error("expected nil for an unreachable redis")
	}
}
