package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-booking/internal/model"
)

// Context keys written by JWTAuth.
const (
	userIDKey = "user_id"
	roleKey   = "role"
)

func setIdentity(c echo.Context, userID uint64, role model.Role) {
	c.Set(userIDKey, userID)
	c.Set(roleKey, role)
}

// UserID returns the authenticated user's id, or false on a route
// without JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(userIDKey).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated user's role.
func Role(c echo.Context) model.Role {
	r, _ := c.Get(roleKey).(model.Role)
	return r
}

// identityKey identifies the caller for rate limiting: the user id when
// authenticated, otherwise "guest".
func identityKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}
