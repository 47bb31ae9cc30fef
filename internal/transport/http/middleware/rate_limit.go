package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/port"
)

// RateLimitRule configures one fixed-window limit. Applies decides whether a
// request is counted against the rule; nil means every request counts.
type RateLimitRule struct {
	Name    string
	Limit   int
	Window  time.Duration
	Applies func(*gin.Context) bool
}

// RateLimiter enforces fixed-window request limits keyed by client IP. A
// window that fills up rejects further requests until its boundary passes;
// counters never slide.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock injects a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// Limit returns a Gin middleware enforcing the provided rules. Store failures
// fail open: an unreachable counter store never blocks traffic.
func (rl *RateLimiter) Limit(rules ...RateLimitRule) gin.HandlerFunc {
	filtered := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "general"
		}
		filtered = append(filtered, rule)
	}

	return func(c *gin.Context) {
		if len(filtered) == 0 || rl.store == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		for _, rule := range filtered {
			if rule.Applies != nil && !rule.Applies(c) {
				continue
			}

			key := fmt.Sprintf("%s:%s", rule.Name, ip)
			count, resetAt, err := rl.store.Hit(c.Request.Context(), key, rule.Window)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.Error(err),
				)
				continue
			}

			if count > rule.Limit {
				retryAfter := int(math.Ceil(time.Until(resetAt).Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}

				c.Header("Retry-After", strconv.Itoa(retryAfter))
				abortWithError(c, http.StatusTooManyRequests,
					"Too Many Requests",
					fmt.Sprintf("Rate limit exceeded, retry in %d seconds", retryAfter))
				return
			}
		}

		c.Next()
	}
}

// GETOnly counts only read requests against the rule.
func GETOnly() func(*gin.Context) bool {
	return func(c *gin.Context) bool {
		return c.Request.Method == http.MethodGet
	}
}

// PathIn counts only requests to the listed paths against the rule.
func PathIn(paths ...string) func(*gin.Context) bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return func(c *gin.Context) bool {
		return set[c.Request.URL.Path]
	}
}
