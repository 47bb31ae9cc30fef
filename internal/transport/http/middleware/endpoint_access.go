package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// readOnlyTables are reachable with any authenticated token via GET.
var readOnlyTables = []string{
	"tablelist",
	"alapadatok",
	"tanugyi_adatok",
	"alkalmazottak_munkaugy",
}

// EndpointAccess authorizes data endpoints against the principal's table
// grants. Superadmins bypass every check. A grant applies when its table name
// occurs anywhere in the request path, so /api/kompetencia and
// /api/kompetencia/42 are both covered by a kompetencia grant.
func EndpointAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		principal, ok := GetPrincipal(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Authentication required")
			return
		}

		user := principal.Actor
		if user.PermissionDetails().IsSuperadmin {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		method := c.Request.Method

		if method == http.MethodGet {
			for _, table := range readOnlyTables {
				if strings.Contains(path, table) {
					c.Next()
					return
				}
			}
		}

		pathMatched := false
		for _, grant := range user.TableAccess {
			name := grant.Table.Name
			if name == "" || !strings.Contains(path, name) {
				continue
			}
			pathMatched = true
			if grant.AccessDetails().Allows(method) {
				c.Next()
				return
			}
		}

		if pathMatched {
			abortWithError(c, http.StatusForbidden, "Forbidden", "You do not have permission to perform this action")
			return
		}
		abortWithError(c, http.StatusForbidden, "Forbidden", "You do not have access to this resource")
	}
}
