package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/port"
)

const defaultRateLimitPrefix = "indicator:rate-limit"

// RateLimitRepository counts requests in fixed windows backed by Redis
// counters. Every key lives exactly one window; the counter and its expiry
// are created together so a window never survives its TTL.
type RateLimitRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewRateLimitRepository constructs a fixed-window counter store.
func NewRateLimitRepository(client *red.Client, prefix string) *RateLimitRepository {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = defaultRateLimitPrefix
	}

	return &RateLimitRepository{client: client, prefix: trimmed, now: time.Now}
}

// WithClock injects a time source for tests.
func (r *RateLimitRepository) WithClock(now func() time.Time) *RateLimitRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// Hit records one request against the key's current window and returns the
// updated count plus the window's absolute reset time.
func (r *RateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	if window <= 0 {
		return 0, time.Time{}, errors.New("window must be positive")
	}

	windowStart := r.now().Truncate(window)
	resetAt := windowStart.Add(window)
	bucket := fmt.Sprintf("%s:%s:%d", r.prefix, key, windowStart.Unix())

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.ExpireNX(ctx, bucket, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("redis rate-limit incr: %w", err)
	}

	return int(incr.Val()), resetAt, nil
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
