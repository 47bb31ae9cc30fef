package usecase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/security"
)

type remoteAuthFixture struct {
	service *RemoteAuthService
	tokens  *security.TokenService
	cache   *stubTokenCache
	events  *recordingPublisher
	login   *loginStub
}

// loginStub plays the login service end of the delegation: a refresh endpoint
// minting real pairs and an admin user endpoint backed by a fixed user map.
type loginStub struct {
	tokens      *security.TokenService
	users       map[int64]domain.User
	refreshHits int
	userHits    int
	lastBearer  string
}

func (s *loginStub) handler() http.Handler {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	engine.POST("/api/refresh", func(c *gin.Context) {
		s.refreshHits++
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Bad Request"})
			return
		}

		claims, err := s.tokens.VerifyRefresh(req.RefreshToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		id, err := security.SubjectID(claims.Subject)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		user, ok := s.users[id]
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		pair, err := s.tokens.IssuePair(user)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"accessToken":  pair.AccessToken,
			"refreshToken": pair.RefreshToken,
		})
	})

	engine.GET("/api/users/:id", func(c *gin.Context) {
		s.userHits++
		s.lastBearer = c.GetHeader("Authorization")

		id, err := security.SubjectID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Bad Request"})
			return
		}
		user, ok := s.users[id]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
			return
		}

		grants := make([]gin.H, 0, len(user.TableAccess))
		for _, grant := range user.TableAccess {
			grants = append(grants, gin.H{
				"tableName":   grant.Table.Name,
				"alias":       grant.Table.Alias,
				"isAvailable": grant.Table.IsAvailable,
				"permissions": grant.AccessDetails(),
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"id":          user.ID,
			"email":       user.Email,
			"name":        user.Name,
			"permissions": user.PermissionDetails(),
			"isActive":    user.IsActive,
			"school":      user.School,
			"tableAccess": grants,
		})
	})

	return engine
}

func newRemoteAuthFixture(t *testing.T, users ...domain.User) *remoteAuthFixture {
	t.Helper()

	tokens, err := security.NewTokenService("test-access-secret", "test-refresh-secret", 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("failed to build token service: %v", err)
	}
	verifier, err := security.NewAccessVerifier("test-access-secret")
	if err != nil {
		t.Fatalf("failed to build verifier: %v", err)
	}

	stub := &loginStub{tokens: tokens, users: map[int64]domain.User{}}
	for _, user := range users {
		stub.users[user.ID] = user
	}

	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	fixture := &remoteAuthFixture{
		tokens: tokens,
		cache:  newStubTokenCache(),
		events: &recordingPublisher{},
		login:  stub,
	}
	fixture.service = NewRemoteAuthService(nil, server.URL, verifier, fixture.cache, fixture.events, zaptest.NewLogger(t)).
		WithHTTPClient(server.Client())

	return fixture
}

func TestRemoteParseAccessToken(t *testing.T) {
	user := domain.User{ID: 5, Email: "tanar@pollak.info", Permissions: domain.PermissionBitStandard, IsActive: true}
	f := newRemoteAuthFixture(t, user)

	pair, err := f.tokens.IssuePair(user)
	if err != nil {
		t.Fatalf("failed to issue pair: %v", err)
	}

	claims, err := f.service.ParseAccessToken(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken returned error: %v", err)
	}
	if claims.Subject != "5" {
		t.Fatalf("expected subject 5, got %q", claims.Subject)
	}
	if f.cache.claimsTTLs[pair.AccessToken] != time.Minute {
		t.Fatalf("expected the default claims TTL, got %v", f.cache.claimsTTLs[pair.AccessToken])
	}

	if _, err := f.service.ParseAccessToken(context.Background(), "not.a.jwt"); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}

	past, err := security.NewTokenService("test-access-secret", "test-refresh-secret", 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("failed to build token service: %v", err)
	}
	past.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	expired, err := past.IssuePair(user)
	if err != nil {
		t.Fatalf("failed to issue pair: %v", err)
	}
	if _, err := f.service.ParseAccessToken(context.Background(), expired.AccessToken); !errors.Is(err, ErrExpiredAccessToken) {
		t.Fatalf("expected ErrExpiredAccessToken, got %v", err)
	}
}

func TestRemoteResolveUserFromClaims(t *testing.T) {
	user := domain.User{
		ID:          6,
		Email:       "tanar@pollak.info",
		Name:        "Kiss Margit",
		Permissions: domain.PermissionBitStandard | domain.PermissionBitAdmin,
		IsActive:    true,
		School:      &domain.School{ID: 1, Name: "Pollák Antal Technikum", OM: "203039"},
		TableAccess: []domain.TableGrant{{
			UserID: 6,
			Table:  domain.TableDescriptor{ID: 2, Name: "kompetencia", Alias: "Kompetencia", IsAvailable: true},
			Access: domain.TableAccessBitRead | domain.TableAccessBitUpdate,
		}},
	}
	f := newRemoteAuthFixture(t, user)

	pair, err := f.tokens.IssuePair(user)
	if err != nil {
		t.Fatalf("failed to issue pair: %v", err)
	}
	claims, err := f.service.ParseAccessToken(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken returned error: %v", err)
	}

	resolved, err := f.service.ResolveUser(context.Background(), pair.AccessToken, claims)
	if err != nil {
		t.Fatalf("ResolveUser returned error: %v", err)
	}

	if resolved.ID != 6 || resolved.Email != user.Email || resolved.Name != user.Name {
		t.Fatalf("unexpected identity: %+v", resolved)
	}
	if resolved.Permissions != user.Permissions {
		t.Fatalf("permission bits must round-trip through the claims, got %b", resolved.Permissions)
	}
	if resolved.School == nil || resolved.School.OM != "203039" {
		t.Fatalf("expected the school snapshot, got %+v", resolved.School)
	}
	if len(resolved.TableAccess) != 1 || resolved.TableAccess[0].Access != user.TableAccess[0].Access {
		t.Fatalf("grant bits must round-trip through the claims, got %+v", resolved.TableAccess)
	}
	if f.cache.userTTLs[pair.AccessToken] != 5*time.Minute {
		t.Fatalf("expected the default user TTL, got %v", f.cache.userTTLs[pair.AccessToken])
	}
	if f.login.refreshHits != 0 || f.login.userHits != 0 {
		t.Fatalf("resolution from claims must not call the login service")
	}
}

func TestRemoteRefreshDelegates(t *testing.T) {
	user := domain.User{ID: 8, Email: "tanar@pollak.info", Permissions: domain.PermissionBitStandard, IsActive: true}
	f := newRemoteAuthFixture(t, user)

	pair, err := f.tokens.IssuePair(user)
	if err != nil {
		t.Fatalf("failed to issue pair: %v", err)
	}

	fresh, refreshed, err := f.service.Refresh(context.Background(), pair.RefreshToken, "req-1")
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if f.login.refreshHits != 1 {
		t.Fatalf("expected the refresh to be delegated, got %d calls", f.login.refreshHits)
	}
	if fresh.AccessToken == "" || fresh.RefreshToken == "" {
		t.Fatalf("expected a complete token pair")
	}
	if refreshed.ID != 8 || refreshed.Email != user.Email {
		t.Fatalf("unexpected refreshed identity: %+v", refreshed)
	}

	if _, _, err := f.service.Refresh(context.Background(), "not.a.jwt", "req-2"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRemoteImpersonateOutcomes(t *testing.T) {
	superadmin := domain.User{ID: 1, Email: "admin@pollak.info", Permissions: domain.PermissionBitSuperadmin, IsActive: true}
	regular := domain.User{ID: 2, Email: "tanar@pollak.info", Permissions: domain.PermissionBitStandard, IsActive: true}
	target := domain.User{
		ID:          3,
		Email:       "diak@pollak.info",
		Permissions: domain.PermissionBitStandard,
		IsActive:    true,
		TableAccess: []domain.TableGrant{{
			UserID: 3,
			Table:  domain.TableDescriptor{ID: 2, Name: "kompetencia", IsAvailable: true},
			Access: domain.TableAccessBitRead,
		}},
	}
	f := newRemoteAuthFixture(t, superadmin, regular, target)

	pair, err := f.tokens.IssuePair(superadmin)
	if err != nil {
		t.Fatalf("failed to issue pair: %v", err)
	}

	t.Run("superadmin acts as the target id", func(t *testing.T) {
		principal, err := f.service.Impersonate(context.Background(), &superadmin, pair.AccessToken, "3", "req-a")
		if err != nil {
			t.Fatalf("Impersonate returned error: %v", err)
		}
		if principal.Impersonation != domain.ImpersonationApplied {
			t.Fatalf("expected applied, got %q", principal.Impersonation)
		}
		if principal.Actor.ID != 3 || principal.ImpersonatedBy == nil || principal.ImpersonatedBy.ID != 1 {
			t.Fatalf("unexpected principal: %+v", principal)
		}
		if len(principal.Actor.TableAccess) != 1 || principal.Actor.TableAccess[0].Access != domain.TableAccessBitRead {
			t.Fatalf("expected the target's grants, got %+v", principal.Actor.TableAccess)
		}
		if !strings.HasSuffix(f.login.lastBearer, pair.AccessToken) {
			t.Fatalf("target lookup must ride on the actor's bearer token, got %q", f.login.lastBearer)
		}
	})

	t.Run("non superadmin is skipped without a lookup", func(t *testing.T) {
		before := f.login.userHits
		principal, err := f.service.Impersonate(context.Background(), &regular, pair.AccessToken, "3", "req-b")
		if err != nil {
			t.Fatalf("Impersonate returned error: %v", err)
		}
		if principal.Impersonation != domain.ImpersonationSkippedNotSuperadmin || principal.Actor.ID != 2 {
			t.Fatalf("unexpected principal: %+v", principal)
		}
		if f.login.userHits != before {
			t.Fatalf("a non superadmin must not trigger a login service lookup")
		}
	})

	t.Run("unknown target id is skipped", func(t *testing.T) {
		principal, err := f.service.Impersonate(context.Background(), &superadmin, pair.AccessToken, "99", "req-c")
		if err != nil {
			t.Fatalf("Impersonate returned error: %v", err)
		}
		if principal.Impersonation != domain.ImpersonationSkippedUserNotFound || principal.Actor.ID != 1 {
			t.Fatalf("unexpected principal: %+v", principal)
		}
	})

	outcomes := make([]domain.ImpersonationOutcome, 0, len(f.events.impersonations))
	for _, event := range f.events.impersonations {
		outcomes = append(outcomes, event.Outcome)
	}
	want := []domain.ImpersonationOutcome{
		domain.ImpersonationApplied,
		domain.ImpersonationSkippedNotSuperadmin,
		domain.ImpersonationSkippedUserNotFound,
	}
	if len(outcomes) != len(want) {
		t.Fatalf("expected %d audit events, got %v", len(want), outcomes)
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Fatalf("expected audit outcomes %v, got %v", want, outcomes)
		}
	}
}
