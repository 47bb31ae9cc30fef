package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/core/port"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/config"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/security"
)

// RemoteAuthService authenticates requests on services that do not own
// identity. Access tokens are verified locally with the access secret only;
// refresh and impersonation-target lookups are delegated over HTTP to the
// login service, so neither the refresh secret nor password hashes ever
// enter this process.
type RemoteAuthService struct {
	cfg      *config.AppConfig
	loginURL string
	verifier *security.AccessVerifier
	cache    port.TokenCache
	events   port.EventPublisher
	client   *http.Client
	logger   *zap.Logger
	now      func() time.Time
}

// NewRemoteAuthService constructs a RemoteAuthService delegating to the login
// service at loginURL.
func NewRemoteAuthService(
	cfg *config.AppConfig,
	loginURL string,
	verifier *security.AccessVerifier,
	cache port.TokenCache,
	events port.EventPublisher,
	logger *zap.Logger,
) *RemoteAuthService {
	return &RemoteAuthService{
		cfg:      cfg,
		loginURL: strings.TrimRight(loginURL, "/"),
		verifier: verifier,
		cache:    cache,
		events:   events,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		now:      time.Now,
	}
}

// WithHTTPClient injects a custom HTTP client (primarily for testing).
func (s *RemoteAuthService) WithHTTPClient(client *http.Client) *RemoteAuthService {
	if client != nil {
		s.client = client
	}
	return s
}

// ParseAccessToken verifies an access token locally, consulting the claims
// cache first. Cache failures degrade to direct verification.
func (s *RemoteAuthService) ParseAccessToken(ctx context.Context, token string) (*domain.AccessTokenClaims, error) {
	if cached, found, err := s.cache.GetClaims(ctx, token); err != nil {
		s.logger.Warn("token claims cache read failed", zap.Error(err))
	} else if found {
		return cached, nil
	}

	claims, err := s.verifier.VerifyAccess(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if err := s.cache.SetClaims(ctx, token, claims, claimsCacheTTL(s.cfg)); err != nil {
		s.logger.Warn("token claims cache write failed", zap.Error(err))
	}

	return claims, nil
}

// ResolveUser rebuilds the user from the verified token's own claims. The
// access token embeds identity, permissions, school and the grant list, so no
// database or login-service call is needed.
func (s *RemoteAuthService) ResolveUser(ctx context.Context, token string, claims *domain.AccessTokenClaims) (*domain.User, error) {
	if cached, found, err := s.cache.GetUser(ctx, token); err != nil {
		s.logger.Warn("token user cache read failed", zap.Error(err))
	} else if found {
		return cached, nil
	}

	id, err := security.SubjectID(claims.Subject)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}

	user := userFromClaims(id, claims)
	if err := s.cache.SetUser(ctx, token, user, userCacheTTL(s.cfg)); err != nil {
		s.logger.Warn("token user cache write failed", zap.Error(err))
	}

	return user, nil
}

// Refresh delegates the refresh exchange to the login service and derives the
// refreshed identity from the returned access token.
func (s *RemoteAuthService) Refresh(ctx context.Context, refreshToken, requestID string) (domain.TokenPair, *domain.User, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return domain.TokenPair{}, nil, fmt.Errorf("marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.loginURL+"/api/refresh", bytes.NewReader(payload))
	if err != nil {
		return domain.TokenPair{}, nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.TokenPair{}, nil, fmt.Errorf("call login service: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decoding
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return domain.TokenPair{}, nil, ErrInvalidRefreshToken
	default:
		return domain.TokenPair{}, nil, fmt.Errorf("login service refresh returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.TokenPair{}, nil, fmt.Errorf("decode refresh response: %w", err)
	}

	claims, err := s.verifier.VerifyAccess(body.AccessToken)
	if err != nil {
		return domain.TokenPair{}, nil, fmt.Errorf("verify refreshed access token: %w", err)
	}
	id, err := security.SubjectID(claims.Subject)
	if err != nil {
		return domain.TokenPair{}, nil, ErrInvalidRefreshToken
	}

	pair := domain.TokenPair{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}
	return pair, userFromClaims(id, claims), nil
}

// Impersonate resolves the acting principal. The target user id is looked up
// through the login service's admin user endpoint, authorized with the
// superadmin actor's own bearer token.
func (s *RemoteAuthService) Impersonate(ctx context.Context, actor *domain.User, accessToken, target, requestID string) (domain.Principal, error) {
	principal := domain.Principal{Actor: *actor, Impersonation: domain.ImpersonationNone}

	target = strings.TrimSpace(target)
	if target == "" {
		return principal, nil
	}

	if !actor.PermissionDetails().IsSuperadmin {
		principal.Impersonation = domain.ImpersonationSkippedNotSuperadmin
		s.auditImpersonation(ctx, actor.ID, 0, principal.Impersonation, requestID)
		return principal, nil
	}

	targetID, err := security.SubjectID(target)
	if err != nil {
		principal.Impersonation = domain.ImpersonationSkippedUserNotFound
		s.auditImpersonation(ctx, actor.ID, 0, principal.Impersonation, requestID)
		return principal, nil
	}

	impersonated, err := s.fetchUser(ctx, targetID, accessToken, requestID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			principal.Impersonation = domain.ImpersonationSkippedUserNotFound
			s.auditImpersonation(ctx, actor.ID, 0, principal.Impersonation, requestID)
			return principal, nil
		}
		return principal, fmt.Errorf("lookup impersonation target: %w", err)
	}

	principal.Actor = *impersonated
	principal.ImpersonatedBy = actor
	principal.Impersonation = domain.ImpersonationApplied
	s.auditImpersonation(ctx, actor.ID, impersonated.ID, principal.Impersonation, requestID)

	return principal, nil
}

func (s *RemoteAuthService) fetchUser(ctx context.Context, id int64, accessToken, requestID string) (*domain.User, error) {
	url := s.loginURL + "/api/users/" + strconv.FormatInt(id, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call login service: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrUserNotFound
	default:
		return nil, fmt.Errorf("login service user lookup returned status %d", resp.StatusCode)
	}

	var view struct {
		ID          int64                `json:"id"`
		Email       string               `json:"email"`
		Name        string               `json:"name"`
		Permissions domain.PermissionSet `json:"permissions"`
		IsActive    bool                 `json:"isActive"`
		School      *domain.School       `json:"school"`
		TableAccess []struct {
			TableName   string                `json:"tableName"`
			Alias       string                `json:"alias"`
			IsAvailable bool                  `json:"isAvailable"`
			Permissions domain.TableAccessSet `json:"permissions"`
		} `json:"tableAccess"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("decode user response: %w", err)
	}

	user := &domain.User{
		ID:          view.ID,
		Email:       view.Email,
		Name:        view.Name,
		Permissions: view.Permissions.Encode(),
		IsActive:    view.IsActive,
		School:      view.School,
	}
	for _, grant := range view.TableAccess {
		user.TableAccess = append(user.TableAccess, domain.TableGrant{
			UserID: view.ID,
			Table: domain.TableDescriptor{
				Name:        grant.TableName,
				Alias:       grant.Alias,
				IsAvailable: grant.IsAvailable,
			},
			Access: grant.Permissions.Encode(),
		})
	}

	return user, nil
}

func (s *RemoteAuthService) auditImpersonation(ctx context.Context, actorID, targetID int64, outcome domain.ImpersonationOutcome, requestID string) {
	if err := s.events.PublishImpersonation(ctx, domain.ImpersonationEvent{
		ActorID:   actorID,
		TargetID:  targetID,
		Outcome:   outcome,
		At:        s.now().UTC(),
		RequestID: requestID,
	}); err != nil {
		s.logger.Warn("publish impersonation event", zap.Error(err))
	}
}

// userFromClaims rebuilds the domain user embedded in an access token. Only
// active users ever receive tokens, and the bitfields round-trip through the
// decoded claim sets.
func userFromClaims(id int64, claims *domain.AccessTokenClaims) *domain.User {
	user := &domain.User{
		ID:          id,
		Email:       claims.Email,
		Name:        claims.Name,
		Permissions: claims.Permissions.Encode(),
		IsActive:    true,
	}
	if claims.School != nil {
		school := *claims.School
		user.School = &school
	}
	for _, claim := range claims.TableAccess {
		user.TableAccess = append(user.TableAccess, domain.TableGrant{
			UserID: id,
			Table: domain.TableDescriptor{
				Name:        claim.TableName,
				Alias:       claim.Alias,
				IsAvailable: claim.IsAvailable,
			},
			Access: claim.Permissions.Encode(),
		})
	}
	return user
}
