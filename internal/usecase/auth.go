package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/core/port"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/config"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/security"
	"github.com/pollak-belso-projektek/indicator-backend/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the provided email or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates the account is disabled.
	ErrInactiveAccount = errors.New("account is not active")
	// ErrInvalidAccessToken indicates the access token is malformed or its signature failed.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrInvalidRefreshToken indicates the refresh token is invalid or expired.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrUserNotFound indicates the token subject no longer resolves to a user.
	ErrUserNotFound = errors.New("user not found")
)

// AuthService coordinates login, token refresh, verification caching and
// impersonation.
type AuthService struct {
	cfg    *config.AppConfig
	users  port.UserRepository
	cache  port.TokenCache
	tokens *security.TokenService
	hasher *security.PasswordHasher
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg *config.AppConfig,
	users port.UserRepository,
	cache port.TokenCache,
	tokens *security.TokenService,
	hasher *security.PasswordHasher,
	events port.EventPublisher,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		cfg:    cfg,
		users:  users,
		cache:  cache,
		tokens: tokens,
		hasher: hasher,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// LoginInput carries the credential check request plus audit context.
type LoginInput struct {
	Email     string
	Password  string
	IP        string
	RequestID string
}

// Login validates credentials and issues a fresh token pair. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (domain.TokenPair, *domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Password == "" {
		return domain.TokenPair{}, nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.auditLoginFailed(ctx, email, "unknown user", input)
			return domain.TokenPair{}, nil, ErrInvalidCredentials
		}
		return domain.TokenPair{}, nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return domain.TokenPair{}, nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.auditLoginFailed(ctx, email, "wrong password", input)
		return domain.TokenPair{}, nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.auditLoginFailed(ctx, email, "inactive account", input)
		return domain.TokenPair{}, nil, ErrInactiveAccount
	}

	pair, err := s.tokens.IssuePair(*user)
	if err != nil {
		return domain.TokenPair{}, nil, fmt.Errorf("issue tokens: %w", err)
	}

	if err := s.events.PublishLoginSucceeded(ctx, domain.LoginSucceededEvent{
		UserID:    user.ID,
		Email:     user.Email,
		IP:        input.IP,
		At:        s.now().UTC(),
		RequestID: input.RequestID,
	}); err != nil {
		s.logger.Warn("publish login event", zap.Error(err))
	}

	user.PasswordHash = ""
	return pair, user, nil
}

// Refresh exchanges a valid refresh token for a new pair. The new pair is
// minted from the user's current permissions and grants, not the old claims.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, requestID string) (domain.TokenPair, *domain.User, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return domain.TokenPair{}, nil, ErrInvalidRefreshToken
	}

	id, err := security.SubjectID(claims.Subject)
	if err != nil {
		return domain.TokenPair{}, nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.TokenPair{}, nil, ErrInvalidRefreshToken
		}
		return domain.TokenPair{}, nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return domain.TokenPair{}, nil, ErrInvalidRefreshToken
	}

	pair, err := s.tokens.IssuePair(*user)
	if err != nil {
		return domain.TokenPair{}, nil, fmt.Errorf("issue tokens: %w", err)
	}

	if err := s.events.PublishTokensRefreshed(ctx, domain.TokensRefreshedEvent{
		UserID:    user.ID,
		Email:     user.Email,
		At:        s.now().UTC(),
		RequestID: requestID,
	}); err != nil {
		s.logger.Warn("publish refresh event", zap.Error(err))
	}

	user.PasswordHash = ""
	return pair, user, nil
}

// ParseAccessToken verifies an access token, consulting the claims cache
// first. Cache failures degrade to direct verification.
func (s *AuthService) ParseAccessToken(ctx context.Context, token string) (*domain.AccessTokenClaims, error) {
	if cached, found, err := s.cache.GetClaims(ctx, token); err != nil {
		s.logger.Warn("token claims cache read failed", zap.Error(err))
	} else if found {
		return cached, nil
	}

	claims, err := s.tokens.VerifyAccess(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if err := s.cache.SetClaims(ctx, token, claims, s.claimsTTL()); err != nil {
		s.logger.Warn("token claims cache write failed", zap.Error(err))
	}

	return claims, nil
}

// ResolveUser loads the user behind a verified access token, read-through the
// user cache. The returned user never carries a password hash.
func (s *AuthService) ResolveUser(ctx context.Context, token string, claims *domain.AccessTokenClaims) (*domain.User, error) {
	if cached, found, err := s.cache.GetUser(ctx, token); err != nil {
		s.logger.Warn("token user cache read failed", zap.Error(err))
	} else if found {
		return cached, nil
	}

	id, err := security.SubjectID(claims.Subject)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserNotFound
	}

	user.PasswordHash = ""
	if err := s.cache.SetUser(ctx, token, user, s.userTTL()); err != nil {
		s.logger.Warn("token user cache write failed", zap.Error(err))
	}

	return user, nil
}

// Impersonate resolves the acting principal for a request. The target names
// the impersonated user by id; a superadmin actor may act as that user while
// everyone else keeps their own identity with an explicit skip outcome. The
// accessToken parameter exists for remote implementations and is unused here.
func (s *AuthService) Impersonate(ctx context.Context, actor *domain.User, _ /* accessToken */, target, requestID string) (domain.Principal, error) {
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

	impersonated, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			principal.Impersonation = domain.ImpersonationSkippedUserNotFound
			s.auditImpersonation(ctx, actor.ID, 0, principal.Impersonation, requestID)
			return principal, nil
		}
		return principal, fmt.Errorf("lookup impersonation target: %w", err)
	}

	impersonated.PasswordHash = ""
	principal.Actor = *impersonated
	principal.ImpersonatedBy = actor
	principal.Impersonation = domain.ImpersonationApplied
	s.auditImpersonation(ctx, actor.ID, impersonated.ID, principal.Impersonation, requestID)

	return principal, nil
}

func (s *AuthService) auditLoginFailed(ctx context.Context, email, reason string, input LoginInput) {
	if err := s.events.PublishLoginFailed(ctx, domain.LoginFailedEvent{
		Email:     email,
		Reason:    reason,
		IP:        input.IP,
		At:        s.now().UTC(),
		RequestID: input.RequestID,
	}); err != nil {
		s.logger.Warn("publish login failure event", zap.Error(err))
	}
}

func (s *AuthService) auditImpersonation(ctx context.Context, actorID, targetID int64, outcome domain.ImpersonationOutcome, requestID string) {
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

func (s *AuthService) claimsTTL() time.Duration { return claimsCacheTTL(s.cfg) }

func (s *AuthService) userTTL() time.Duration { return userCacheTTL(s.cfg) }

func claimsCacheTTL(cfg *config.AppConfig) time.Duration {
	if cfg != nil && cfg.Redis.ClaimsCacheTTL > 0 {
		return cfg.Redis.ClaimsCacheTTL
	}
	return time.Minute
}

func userCacheTTL(cfg *config.AppConfig) time.Duration {
	if cfg != nil && cfg.Redis.UserCacheTTL > 0 {
		return cfg.Redis.UserCacheTTL
	}
	return 5 * time.Minute
}
