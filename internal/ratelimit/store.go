package ratelimit

import (
	"context"
	"time"
)

// WindowStore keeps per-key request timestamps for sliding-window
// admission. Implementations must be safe for concurrent use and must
// prune entries older than the window on every call.
type WindowStore interface {
	// Slide drops timestamps older than now-window and, if fewer than max
	// remain, records now. It reports whether the request was admitted and
	// the occupancy after the call.
	Slide(ctx context.Context, key string, now time.Time, window time.Duration, max int) (allowed bool, count int, err error)
	// Count returns the current occupancy without recording a request.
	Count(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
}
