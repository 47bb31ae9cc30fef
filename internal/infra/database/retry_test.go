package database

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap/zaptest"
)

func newTestRetryer(t *testing.T, cfg RetryConfig) (*Retryer, *[]time.Duration) {
	t.Helper()

	var sleeps []time.Duration
	retryer := NewRetryer(cfg, zaptest.NewLogger(t)).WithSleep(func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	})
	return retryer, &sleeps
}

func TestRetryerSucceedsAfterTransientFailures(t *testing.T) {
	retryer, sleeps := newTestRetryer(t, RetryConfig{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2})

	attempts := 0
	err := retryer.Do(context.Background(), "test op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return syscall.ECONNREFUSED
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(*sleeps) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", len(*sleeps))
	}
}

func TestRetryerExhaustsAttemptBudget(t *testing.T) {
	retryer, sleeps := newTestRetryer(t, RetryConfig{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2})

	attempts := 0
	sentinel := syscall.ECONNRESET
	err := retryer.Do(context.Background(), "test op", func(context.Context) error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 6 {
		t.Fatalf("expected 6 attempts (1 + 5 retries), got %d", attempts)
	}
	if len(*sleeps) != 5 {
		t.Fatalf("expected 5 sleeps, got %d", len(*sleeps))
	}
}

func TestRetryerStopsOnFatalError(t *testing.T) {
	retryer, _ := newTestRetryer(t, RetryConfig{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2})

	attempts := 0
	err := retryer.Do(context.Background(), "test op", func(context.Context) error {
		attempts++
		return pgx.ErrNoRows
	})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("fatal error should not be retried, got %d attempts", attempts)
	}
}

func TestRetryerBackoffGrowsAndCaps(t *testing.T) {
	retryer, sleeps := newTestRetryer(t, RetryConfig{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: 4 * time.Second, Multiplier: 2})

	_ = retryer.Do(context.Background(), "test op", func(context.Context) error {
		return syscall.ETIMEDOUT
	})

	// jitter is ±25%, so each delay stays within [0.75, 1.25]× its base,
	// and the base is capped at MaxDelay
	bases := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second}
	if len(*sleeps) != len(bases) {
		t.Fatalf("expected %d sleeps, got %d", len(bases), len(*sleeps))
	}
	for i, base := range bases {
		low := time.Duration(float64(base) * 0.75)
		high := time.Duration(float64(base) * 1.25)
		if (*sleeps)[i] < low || (*sleeps)[i] > high {
			t.Fatalf("sleep %d = %v outside [%v, %v]", i, (*sleeps)[i], low, high)
		}
	}
}

func TestRetryGenericReturnsValue(t *testing.T) {
	retryer, _ := newTestRetryer(t, RetryConfig{MaxRetries: 2, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 2})

	attempts := 0
	value, err := Retry(context.Background(), retryer, "fetch", func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", syscall.ECONNREFUSED
		}
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if value != "hello" {
		t.Fatalf("expected hello, got %q", value)
	}
}

func TestIsRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"no rows", pgx.ErrNoRows, false},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"broken pipe", syscall.EPIPE, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"pg connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"pg cannot connect now", &pgconn.PgError{Code: "57P03"}, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"message match", errors.New("dial tcp: can't reach database server"), true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRetryerAbortsWhenContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	retryer := NewRetryer(RetryConfig{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 2}, zaptest.NewLogger(t)).
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		})

	attempts := 0
	err := retryer.Do(ctx, "test op", func(context.Context) error {
		attempts++
		return syscall.ECONNREFUSED
	})
	if err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", attempts)
	}
}
