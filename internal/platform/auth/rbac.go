package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that admits the request when the caller
// holds at least one of the listed roles. The admin role passes every gate.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == "admin" {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// publicPaths lists endpoints reachable without credentials: health checks
// and the example request.
var publicPaths = map[string]bool{
	"/health":              true,
	"/health/db":           true,
	"/api/v1/code/example": true,
}

// IsPublicPath reports whether the path bypasses authentication.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
