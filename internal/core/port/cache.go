package port

import (
	"context"
	"time"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
)

// TokenCache memoizes verified token claims and resolved users keyed by the
// raw token string. TTLs are shorter than the minimum realistic token
// lifetime; entries expire by absolute timestamp.
type TokenCache interface {
	GetClaims(ctx context.Context, token string) (*domain.AccessTokenClaims, bool, error)
	SetClaims(ctx context.Context, token string, claims *domain.AccessTokenClaims, ttl time.Duration) error
	GetUser(ctx context.Context, token string) (*domain.User, bool, error)
	SetUser(ctx context.Context, token string, user *domain.User, ttl time.Duration) error
}
