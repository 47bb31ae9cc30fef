package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	red "github.com/redis/go-redis/v9"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestTokenCacheClaimsRoundTrip(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewTokenCacheRepository(client, "indicator:token")
	ctx := context.Background()

	claims := &domain.AccessTokenClaims{
		Email: "teszt@pollak.info",
		Name:  "Teszt Elek",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:  domain.Issuer,
			Subject: "42",
		},
	}

	if err := repo.SetClaims(ctx, "tok-1", claims, time.Minute); err != nil {
		t.Fatalf("SetClaims returned error: %v", err)
	}

	got, found, err := repo.GetClaims(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetClaims returned error: %v", err)
	}
	if !found {
		t.Fatalf("expected cache hit")
	}
	if got.Email != claims.Email || got.Subject != "42" {
		t.Fatalf("unexpected claims %+v", got)
	}

	remaining := server.TTL("indicator:token:verify:tok-1")
	if remaining <= 0 || remaining > time.Minute {
		t.Fatalf("expected ttl within (0, 1m], got %v", remaining)
	}
}

func TestTokenCacheMiss(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewTokenCacheRepository(client, "")

	_, found, err := repo.GetClaims(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetClaims returned error: %v", err)
	}
	if found {
		t.Fatalf("expected cache miss")
	}

	_, found, err = repo.GetUser(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if found {
		t.Fatalf("expected cache miss")
	}
}

func TestTokenCacheUserRoundTripAndExpiry(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewTokenCacheRepository(client, "indicator:token")
	ctx := context.Background()

	user := &domain.User{
		ID:          42,
		Email:       "teszt@pollak.info",
		Permissions: 0b00101,
		TableAccess: []domain.TableGrant{
			{Table: domain.TableDescriptor{Name: "kompetencia", IsAvailable: true}, Access: 0b0001},
		},
	}

	if err := repo.SetUser(ctx, "tok-1", user, 5*time.Minute); err != nil {
		t.Fatalf("SetUser returned error: %v", err)
	}

	got, found, err := repo.GetUser(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if !found {
		t.Fatalf("expected cache hit")
	}
	if got.ID != 42 || len(got.TableAccess) != 1 {
		t.Fatalf("unexpected user %+v", got)
	}

	server.FastForward(6 * time.Minute)

	_, found, err = repo.GetUser(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if found {
		t.Fatalf("expected entry to expire")
	}
}

func TestTokenCacheRejectsNonPositiveTTL(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewTokenCacheRepository(client, "")

	if err := repo.SetClaims(context.Background(), "tok", &domain.AccessTokenClaims{}, 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}
