// Package ratelimit bounds request volume per caller and operation class
// with a sliding window over an abstract store.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/paycore/internal/clock"
	"github.com/smallbiznis/paycore/internal/config"
	obsmetrics "github.com/smallbiznis/paycore/internal/observability/metrics"
	"go.uber.org/zap"
)

const keyWindow = "ratelimit:%s:%s"

// Limiter is the sliding-window admission controller. Quotas are resolved
// per (tier, operation class) from the hot-reloadable limits config.
//
// Store failures fail open: the request is admitted, the degraded counter
// is incremented, and a warning is logged. Availability of the business
// operation wins over strict quota enforcement during store incidents.
type Limiter struct {
	enabled bool

	store      WindowStore
	limits     *config.LimitsHolder
	clk        clock.Clock
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
}

func NewLimiter(enabled bool, store WindowStore, limits *config.LimitsHolder, clk clock.Clock, log *zap.Logger, m *obsmetrics.Metrics) *Limiter {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{
		enabled:    enabled,
		store:      store,
		limits:     limits,
		clk:        clk,
		log:        log.Named("ratelimit"),
		obsMetrics: m,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled && l.store != nil
}

// Allow admits or denies one request for the identifier and operation
// class under the tier's quota.
func (l *Limiter) Allow(ctx context.Context, identifier, tier, operation string) bool {
	if !l.Enabled() {
		return true
	}

	limit, ok := l.limits.Lookup(tier, operation)
	if !ok {
		// No quota configured for this operation class.
		return true
	}

	key := windowKey(identifier, operation)
	window := time.Duration(limit.WindowSeconds) * time.Second
	allowed, _, err := l.store.Slide(ctx, key, l.clk.Now(), window, limit.MaxRequests)
	if err != nil {
		l.log.Warn("window store unavailable, failing open",
			zap.String("operation", operation),
			zap.Error(err),
		)
		l.obsMetrics.RecordRateLimitDegraded(ctx, operation)
		return true
	}

	if allowed {
		l.obsMetrics.RecordRateLimitAllowed(ctx, operation)
	} else {
		l.obsMetrics.RecordRateLimitDenied(ctx, operation)
	}
	return allowed
}

// Remaining reports how many requests the identifier may still make in the
// current window. Store failures report the full quota.
func (l *Limiter) Remaining(ctx context.Context, identifier, tier, operation string) int {
	if !l.Enabled() {
		return 0
	}

	limit, ok := l.limits.Lookup(tier, operation)
	if !ok {
		return 0
	}

	window := time.Duration(limit.WindowSeconds) * time.Second
	count, err := l.store.Count(ctx, windowKey(identifier, operation), l.clk.Now(), window)
	if err != nil {
		l.log.Warn("window store unavailable for remaining", zap.Error(err))
		return limit.MaxRequests
	}

	remaining := limit.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// RetryAfter is the caller-facing hint for denied requests.
func (l *Limiter) RetryAfter(tier, operation string) time.Duration {
	if l == nil || l.limits == nil {
		return 0
	}
	limit, ok := l.limits.Lookup(tier, operation)
	if !ok {
		return 0
	}
	return time.Duration(limit.WindowSeconds) * time.Second
}

func windowKey(identifier, operation string) string {
	return fmt.Sprintf(keyWindow, strings.TrimSpace(operation), strings.TrimSpace(identifier))
}
