package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/security"
)

// GatewayAuth rejects requests without a valid access token before they reach
// the proxies. The check is purely cryptographic: no cache, no database, no
// rotation. Expired tokens get a 401 and the client refreshes through
// /api/refresh; the services behind the gateway still resolve the principal
// themselves.
func GatewayAuth(verifier *security.AccessVerifier, publicPaths []string) gin.HandlerFunc {
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

		if _, err := verifier.VerifyAccess(token); err != nil {
			if errors.Is(err, security.ErrTokenExpired) {
				abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Token expired")
				return
			}
			abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Invalid token")
			return
		}

		c.Next()
	}
}
