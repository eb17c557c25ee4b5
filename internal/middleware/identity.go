package middleware

import (
	"encoding/json"
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID renders the authenticated user's identifier as a string for
// use in rate-limit keys.  JWTAuth stores the raw subject claim, whose Go
// type depends on how the token was minted (string, json.Number, or float64
// after a round trip through encoding/json).  Unauthenticated requests
// resolve to "anon".
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	}
	return "anon"
}
