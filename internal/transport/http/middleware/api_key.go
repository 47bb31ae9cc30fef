package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const apiKeyHeader = "X-API-Key"

// APIKey gates requests on a static key carried in the X-API-Key header.
// Comparison is constant time. With no keys configured the gate is disabled
// and a warning is logged once at startup.
func APIKey(keys []string, skip func(*gin.Context) bool, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	if len(keys) == 0 {
		log.Warn("API key check disabled: no keys configured")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if skip != nil && skip(c) {
			c.Next()
			return
		}

		supplied := c.GetHeader(apiKeyHeader)
		if supplied == "" {
			abortWithError(c, http.StatusUnauthorized, "Unauthorized", "API key is missing")
			return
		}

		for _, key := range keys {
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) == 1 {
				c.Next()
				return
			}
		}

		abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Invalid API key")
	}
}
