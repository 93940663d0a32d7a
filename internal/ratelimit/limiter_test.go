package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/paycore/internal/clock"
	"github.com/smallbiznis/paycore/internal/config"
	"go.uber.org/zap"
)

func testLimits() *config.LimitsHolder {
	return config.NewStaticLimitsHolder(config.LimitsConfig{
		Tiers: map[string]map[string]config.TierLimit{
			"basic": {
				"payment": {MaxRequests: 5, WindowSeconds: 60},
			},
			"plus": {
				"payment": {MaxRequests: 10, WindowSeconds: 60},
			},
		},
	})
}

func TestSlidingWindowDeniesSixthRequest(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Now())
	l := NewLimiter(true, NewMemoryStore(), testLimits(), clk, zap.NewNop(), nil)

	for i := 0; i < 5; i++ {
		if !l.Allow(ctx, "cust_1", "basic", "payment") {
			t.Fatalf("request %d should be allowed", i+1)
		}
		clk.Advance(time.Second)
	}
	if l.Allow(ctx, "cust_1", "basic", "payment") {
		t.Fatal("sixth request within the window should be denied")
	}
	if got := l.Remaining(ctx, "cust_1", "basic", "payment"); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}

	// Past the window from the first request, capacity frees up again.
	clk.Advance(56 * time.Second)
	if !l.Allow(ctx, "cust_1", "basic", "payment") {
		t.Fatal("request after window elapsed should be allowed")
	}
}

func TestQuotasAreIndependentPerTier(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Now())
	l := NewLimiter(true, NewMemoryStore(), testLimits(), clk, zap.NewNop(), nil)

	for i := 0; i < 5; i++ {
		l.Allow(ctx, "basic_cust", "basic", "payment")
	}
	if l.Allow(ctx, "basic_cust", "basic", "payment") {
		t.Fatal("basic tier should be exhausted")
	}

	// A plus-tier caller has its own window and quota.
	for i := 0; i < 10; i++ {
		if !l.Allow(ctx, "plus_cust", "plus", "payment") {
			t.Fatalf("plus request %d should be allowed", i+1)
		}
	}
	if l.Allow(ctx, "plus_cust", "plus", "payment") {
		t.Fatal("plus tier should be exhausted at 10")
	}
}

func TestUnknownTierFallsBackToBasic(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Now())
	l := NewLimiter(true, NewMemoryStore(), testLimits(), clk, zap.NewNop(), nil)

	for i := 0; i < 5; i++ {
		if !l.Allow(ctx, "cust_x", "mystery", "payment") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow(ctx, "cust_x", "mystery", "payment") {
		t.Fatal("unknown tier should inherit the basic quota")
	}
}

type failingStore struct{}

func (failingStore) Slide(ctx context.Context, key string, now time.Time, window time.Duration, max int) (bool, int, error) {
	return false, 0, errors.New("store down")
}

func (failingStore) Count(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	return 0, errors.New("store down")
}

func TestLimiterFailsOpenOnStoreError(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Now())
	l := NewLimiter(true, failingStore{}, testLimits(), clk, zap.NewNop(), nil)

	for i := 0; i < 20; i++ {
		if !l.Allow(ctx, "cust_1", "basic", "payment") {
			t.Fatal("store failure must fail open")
		}
	}
	if got := l.Remaining(ctx, "cust_1", "basic", "payment"); got != 5 {
		t.Fatalf("degraded remaining should report full quota, got %d", got)
	}
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(false, nil, testLimits(), nil, zap.NewNop(), nil)

	for i := 0; i < 100; i++ {
		if !l.Allow(ctx, "cust_1", "basic", "payment") {
			t.Fatal("disabled limiter must admit everything")
		}
	}
}
