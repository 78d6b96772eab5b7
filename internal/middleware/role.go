package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-bot/internal/ledger"
)

// RoleAdmin is the only role the API issues.
const RoleAdmin = "admin"

// RequireAdmin lets the request through only when JWTAuth stored the admin
// role and the subject is the configured administrator.  It must run after
// JWTAuth.
func RequireAdmin(adminID int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			id, ok := subject(c)
			if role != RoleAdmin || !ok || ledger.Authorize(id, adminID) != nil {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
