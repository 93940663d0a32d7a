package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func TestRedisStoreSlide(t *testing.T) {
	ctx := context.Background()
	store := setupRedisStore(t)
	now := time.Now()

	for i := 0; i < 5; i++ {
		allowed, count, err := store.Slide(ctx, "ratelimit:payment:cust_1", now, time.Minute, 5)
		if err != nil {
			t.Fatalf("slide %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("slide %d should be allowed", i)
		}
		if count != i+1 {
			t.Fatalf("slide %d: expected count %d, got %d", i, i+1, count)
		}
		now = now.Add(time.Second)
	}

	allowed, count, err := store.Slide(ctx, "ratelimit:payment:cust_1", now, time.Minute, 5)
	if err != nil {
		t.Fatalf("slide over quota: %v", err)
	}
	if allowed {
		t.Fatal("sixth request should be denied")
	}
	if count != 5 {
		t.Fatalf("expected occupancy 5, got %d", count)
	}
}

func TestRedisStoreExpiresOldEntries(t *testing.T) {
	ctx := context.Background()
	store := setupRedisStore(t)
	base := time.Now()

	for i := 0; i < 5; i++ {
		if _, _, err := store.Slide(ctx, "ratelimit:payment:cust_1", base, time.Minute, 5); err != nil {
			t.Fatalf("slide: %v", err)
		}
	}

	// All five entries fall out once the window passes.
	later := base.Add(61 * time.Second)
	allowed, count, err := store.Slide(ctx, "ratelimit:payment:cust_1", later, time.Minute, 5)
	if err != nil {
		t.Fatalf("slide after window: %v", err)
	}
	if !allowed {
		t.Fatal("request after window should be allowed")
	}
	if count != 1 {
		t.Fatalf("stale entries should be pruned, got count %d", count)
	}
}

func TestRedisStoreCount(t *testing.T) {
	ctx := context.Background()
	store := setupRedisStore(t)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if _, _, err := store.Slide(ctx, "k", now, time.Minute, 10); err != nil {
			t.Fatalf("slide: %v", err)
		}
	}

	count, err := store.Count(ctx, "k", now, time.Minute)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}

	count, err = store.Count(ctx, "k", now.Add(2*time.Minute), time.Minute)
	if err != nil {
		t.Fatalf("count after window: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 after window, got %d", count)
	}
}
