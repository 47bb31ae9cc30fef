package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
)

var (
	// ErrTokenExpired indicates the token's exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrIssuerMismatch indicates the token was minted by a different authority.
	ErrIssuerMismatch = errors.New("token issuer mismatch")
	// ErrInvalidToken indicates a malformed token or failed signature check.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenService mints and verifies the HS256 token pair. Access and refresh
// tokens live in separate signing domains: a verifier configured for one
// secret never accepts tokens from the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService constructs a TokenService for the supplied secrets and
// lifetimes.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("token service: both signing secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("token service: access and refresh secrets must differ")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// WithClock injects a custom clock (primarily for testing).
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// IssuePair mints an access and refresh token for the user. The embedded
// tableAccess list contains only grants whose descriptor was available at
// mint time; disabling a table later does not alter issued tokens.
func (s *TokenService) IssuePair(user domain.User) (domain.TokenPair, error) {
	now := s.now().UTC()
	subject := strconv.FormatInt(user.ID, 10)

	grants := user.AvailableGrants()
	tableAccess := make([]domain.TableAccessClaim, 0, len(grants))
	for _, g := range grants {
		tableAccess = append(tableAccess, domain.TableAccessClaim{
			TableName:   g.Table.Name,
			Permissions: g.AccessDetails(),
			IsAvailable: g.Table.IsAvailable,
			Alias:       g.Table.Alias,
		})
	}

	accessClaims := domain.AccessTokenClaims{
		Email:       user.Email,
		Name:        user.Name,
		Permissions: user.PermissionDetails(),
		School:      user.School,
		TableAccess: tableAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    domain.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			ID:        uuid.NewString(),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(s.accessSecret)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshClaims := domain.RefreshTokenClaims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    domain.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
			ID:        uuid.NewString(),
		},
	}

	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(s.refreshSecret)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// VerifyAccess checks an access token cryptographically; no network call.
func (s *TokenService) VerifyAccess(token string) (*domain.AccessTokenClaims, error) {
	var claims domain.AccessTokenClaims
	if err := s.verify(token, s.accessSecret, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// VerifyRefresh checks a refresh token against the refresh signing domain.
func (s *TokenService) VerifyRefresh(token string) (*domain.RefreshTokenClaims, error) {
	var claims domain.RefreshTokenClaims
	if err := s.verify(token, s.refreshSecret, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (s *TokenService) verify(token string, secret []byte, claims jwt.Claims) error {
	return verifyToken(token, secret, s.now, claims)
}

// AccessVerifier checks access tokens with only the access signing secret.
// Processes that must never hold the refresh secret (the gateway, the data
// service) use it instead of the full TokenService.
type AccessVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewAccessVerifier constructs a verifier for the access signing domain.
func NewAccessVerifier(secret string) (*AccessVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("access verifier: signing secret is required")
	}
	return &AccessVerifier{secret: []byte(secret), now: time.Now}, nil
}

// WithClock injects a custom clock (primarily for testing).
func (v *AccessVerifier) WithClock(now func() time.Time) *AccessVerifier {
	if now != nil {
		v.now = now
	}
	return v
}

// VerifyAccess checks an access token cryptographically; no network call.
func (v *AccessVerifier) VerifyAccess(token string) (*domain.AccessTokenClaims, error) {
	var claims domain.AccessTokenClaims
	if err := verifyToken(token, v.secret, v.now, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func verifyToken(token string, secret []byte, now func() time.Time, claims jwt.Claims) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(domain.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)

	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return ErrIssuerMismatch
		default:
			return fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	return nil
}

// SubjectID parses the numeric subject claim.
func SubjectID(subject string) (int64, error) {
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric subject", ErrInvalidToken)
	}
	return id, nil
}
