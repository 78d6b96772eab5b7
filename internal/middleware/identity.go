package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// subject returns the numeric subject stored by JWTAuth.  Tokens carry the
// subject as a decimal string.
func subject(c echo.Context) (int64, bool) {
	s, ok := c.Get("subject").(string)
	if !ok || s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
