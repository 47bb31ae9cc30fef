package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/usecase"
)

const (
	authorizationHeader = "Authorization"
	refreshTokenHeader  = "X-Refresh-Token"
	impersonateHeader   = "X-Impersonate-User"

	principalKey = "principal"
)

// Authenticator is the surface Auth needs to validate tokens and resolve the
// acting principal. The login service backs it with the full AuthService; the
// data service backs it with RemoteAuthService, which verifies locally and
// delegates refresh to the login service.
type Authenticator interface {
	ParseAccessToken(ctx context.Context, token string) (*domain.AccessTokenClaims, error)
	Refresh(ctx context.Context, refreshToken, requestID string) (domain.TokenPair, *domain.User, error)
	ResolveUser(ctx context.Context, token string, claims *domain.AccessTokenClaims) (*domain.User, error)
	Impersonate(ctx context.Context, actor *domain.User, accessToken, target, requestID string) (domain.Principal, error)
}

// Auth validates the bearer token on every request, transparently rotating
// expired access tokens when a valid refresh token rides along, and resolves
// the acting principal including impersonation.
//
// CORS preflights and public paths pass through untouched. On rotation the
// new pair is returned in the Authorization and X-Refresh-Token response
// headers and the request proceeds under the refreshed identity.
func Auth(authService Authenticator, publicPaths []string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if public[c.Request.URL.Path] {
			c.Next()
			return
		}

		header := c.GetHeader(authorizationHeader)
		if header == "" {
			abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Authorization header is missing")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" || token == header {
			abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Token is missing")
			return
		}

		ctx := c.Request.Context()
		claims, err := authService.ParseAccessToken(ctx, token)
		switch {
		case err == nil:
			// fall through to user resolution
		case errors.Is(err, usecase.ErrExpiredAccessToken):
			refreshToken := c.GetHeader(refreshTokenHeader)
			if refreshToken == "" {
				abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Refresh token is missing")
				return
			}

			pair, user, refreshErr := authService.Refresh(ctx, refreshToken, GetRequestID(c))
			if refreshErr != nil {
				abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Invalid or expired refresh token")
				return
			}

			c.Header(authorizationHeader, "Bearer "+pair.AccessToken)
			c.Header(refreshTokenHeader, pair.RefreshToken)

			resolvePrincipal(c, authService, pair.AccessToken, user)
			return
		default:
			abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Invalid token")
			return
		}

		user, err := authService.ResolveUser(ctx, token, claims)
		if err != nil {
			if errors.Is(err, usecase.ErrUserNotFound) || errors.Is(err, usecase.ErrInvalidAccessToken) {
				abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Invalid token")
				return
			}
			log.Error("resolve user failed", zap.Error(err))
			abortWithError(c, http.StatusInternalServerError, "Internal Server Error", "Authentication failed")
			return
		}

		resolvePrincipal(c, authService, token, user)
	}
}

// resolvePrincipal applies impersonation and installs the acting principal,
// then continues the chain. The X-Impersonate-User header carries the target
// user id.
func resolvePrincipal(c *gin.Context, authService Authenticator, token string, user *domain.User) {
	principal, err := authService.Impersonate(
		c.Request.Context(),
		user,
		token,
		c.GetHeader(impersonateHeader),
		GetRequestID(c),
	)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Internal Server Error", "Authentication failed")
		return
	}

	c.Set(principalKey, principal)
	c.Next()
}

// GetPrincipal returns the acting principal installed by Auth.
func GetPrincipal(c *gin.Context) (domain.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := value.(domain.Principal)
	return principal, ok
}
