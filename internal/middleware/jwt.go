package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-booking/internal/model"
	"github.com/iliyamo/study-room-booking/internal/utils"
)

// JWTAuth validates a Bearer access token and stores the user id, role
// and account status in the context for downstream handlers.  Tokens of
// accounts that are not approved are refused even when the signature
// is valid.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return deny(c, http.StatusUnauthorized, "missing bearer token", "unauthorized")
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return deny(c, http.StatusUnauthorized, "invalid token", "unauthorized")
			}
			if model.AccountStatus(claims.Status) != model.AccountApproved {
				return deny(c, http.StatusForbidden, "account not approved", "forbidden")
			}
			uid, _ := claims.UserID()
			setIdentity(c, uid, model.Role(claims.Role))
			return next(c)
		}
	}
}

func deny(c echo.Context, status int, msg, code string) error {
	return c.JSON(status, echo.Map{"error": msg, "code": code})
}
