package port

import (
	"context"
	"time"
)

// RateLimitStore counts requests inside fixed windows. Hit returns the
// counter value after recording the request and the absolute expiry of the
// current window; counters reset at the window boundary, not on a slide.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}
