package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user's id stored by JWTAuth, or
// (0, false) on an unauthenticated request.
func UserID(c echo.Context) (uint64, bool) {
	if v, ok := c.Get("user_id").(uint64); ok {
		return v, true
	}
	return 0, false
}

// currentUserID renders the authenticated user for rate-limit keys.
// Anonymous requests share the "anon" bucket per IP.
func currentUserID(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
