package database

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// RetryConfig tunes the exponential backoff applied to transient database
// failures.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig mirrors the deployment defaults: up to 5 retries, 1s
// initial delay doubling to a 30s cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Retryer wraps database operations in classify-and-backoff retry. The
// backoff sleep suspends only the calling goroutine.
type Retryer struct {
	cfg    RetryConfig
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryer constructs a Retryer with the supplied config, falling back to
// defaults for unset fields.
func NewRetryer(cfg RetryConfig, logger *zap.Logger) *Retryer {
	def := DefaultRetryConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = def.Multiplier
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Retryer{
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
}

// WithSleep injects a custom sleep function (primarily for testing).
func (r *Retryer) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Retryer {
	if sleep != nil {
		r.sleep = sleep
	}
	return r
}

// Do runs fn, retrying transient failures with backoff. Fatal errors are
// returned immediately; exhausting the attempt budget returns the last error.
func (r *Retryer) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == r.cfg.MaxRetries || !IsRetryable(err) {
			return lastErr
		}

		delay := r.delay(attempt)
		r.logger.Warn("database operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.cfg.MaxRetries+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return lastErr
		}
	}

	return lastErr
}

// Retry runs fn through the retryer and returns its value.
func Retry[T any](ctx context.Context, r *Retryer, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, operation, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}

// delay computes the exponential backoff for the given attempt with ±25%
// jitter, capped at MaxDelay.
func (r *Retryer) delay(attempt int) time.Duration {
	base := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(attempt))
	if capped := float64(r.cfg.MaxDelay); base > capped {
		base = capped
	}

	jittered := base * (0.75 + rand.Float64()*0.5)
	return time.Duration(jittered)
}

// retryableMessages covers driver conditions that only surface as text.
var retryableMessages = []string{
	"can't reach database server",
	"server closed the connection",
	"operation timed out",
	"connection refused",
	"connection reset",
	"broken pipe",
	"the database system is starting up",
	"the database system is shutting down",
	"i/o timeout",
}

// IsRetryable classifies an error as transient (connection-level) or fatal.
// Constraint violations, not-found conditions and cancellations are fatal;
// network-level failures are transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. 57P03: cannot connect now.
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P03"
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, candidate := range retryableMessages {
		if strings.Contains(msg, candidate) {
			return true
		}
	}

	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
