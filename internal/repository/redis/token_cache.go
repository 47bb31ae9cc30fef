package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/core/port"
)

const defaultTokenCachePrefix = "indicator:token"

// TokenCacheRepository memoizes verified claims and resolved users in Redis,
// keyed by the raw access token. Entries expire on their own TTL so a revoked
// or expired token stops resolving within the cache window.
type TokenCacheRepository struct {
	client *red.Client
	prefix string
}

// NewTokenCacheRepository wires Redis storage for the token caches.
func NewTokenCacheRepository(client *red.Client, prefix string) *TokenCacheRepository {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = defaultTokenCachePrefix
	}

	return &TokenCacheRepository{client: client, prefix: trimmed}
}

// GetClaims returns cached verified claims for the token, if present.
func (r *TokenCacheRepository) GetClaims(ctx context.Context, token string) (*domain.AccessTokenClaims, bool, error) {
	var claims domain.AccessTokenClaims
	found, err := r.get(ctx, r.claimsKey(token), &claims)
	if err != nil || !found {
		return nil, false, err
	}
	return &claims, true, nil
}

// SetClaims stores verified claims under the token for the given TTL.
func (r *TokenCacheRepository) SetClaims(ctx context.Context, token string, claims *domain.AccessTokenClaims, ttl time.Duration) error {
	return r.set(ctx, r.claimsKey(token), claims, ttl)
}

// GetUser returns the cached resolved user for the token, if present.
func (r *TokenCacheRepository) GetUser(ctx context.Context, token string) (*domain.User, bool, error) {
	var user domain.User
	found, err := r.get(ctx, r.userKey(token), &user)
	if err != nil || !found {
		return nil, false, err
	}
	return &user, true, nil
}

// SetUser stores the resolved user under the token for the given TTL.
func (r *TokenCacheRepository) SetUser(ctx context.Context, token string, user *domain.User, ttl time.Duration) error {
	return r.set(ctx, r.userKey(token), user, ttl)
}

func (r *TokenCacheRepository) get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode cached entry: %w", err)
	}
	return true, nil
}

func (r *TokenCacheRepository) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("cache ttl must be positive")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *TokenCacheRepository) claimsKey(token string) string {
	return fmt.Sprintf("%s:verify:%s", r.prefix, token)
}

func (r *TokenCacheRepository) userKey(token string) string {
	return fmt.Sprintf("%s:user:%s", r.prefix, token)
}

var _ port.TokenCache = (*TokenCacheRepository)(nil)
