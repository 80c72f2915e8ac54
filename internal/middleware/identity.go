package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/match-ticket-reservation/internal/model"
)

// Identity returns the caller set by JWTAuth.  ok is false for anonymous
// requests.
func Identity(c echo.Context) (model.Identity, bool) {
	uid, ok := c.Get(CtxUserID).(uint64)
	if !ok || uid == 0 {
		return model.Identity{}, false
	}
	role, _ := c.Get(CtxRole).(string)
	return model.Identity{UserID: uid, Role: role}, true
}

// currentUserID renders the caller for rate-limit keys and request logs.
func currentUserID(c echo.Context) string {
	if who, ok := Identity(c); ok {
		return strconv.FormatUint(who.UserID, 10)
	}
	return "anon"
}
