// Package middleware provides authentication and request validation middleware for the Gin web framework.
package middleware

import (
	"net/http"

	contextutils "wordgames/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// UserIDKey is the session key holding the authenticated user's id
const UserIDKey = "user_id"

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, contextutils.ErrUnauthorized.ToJSON())
}

// sessionUserID reads the user id from the session, tolerating ids decoded as float64
func sessionUserID(c *gin.Context) (int, bool) {
	switch v := sessions.Default(c).Get(UserIDKey).(type) {
	case int:
		return v, v > 0
	case int64:
		return int(v), v > 0
	case float64:
		return int(v), v > 0
	default:
		return 0, false
	}
}

// RequireAuth returns a middleware that requires a session with a user id.
// The id is stored in the gin context and in the request context.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := sessionUserID(c)
		if !ok {
			unauthorized(c)
			return
		}

		c.Set(UserIDKey, userID)
		c.Request = c.Request.WithContext(contextutils.WithUserID(c.Request.Context(), userID))

		c.Next()
	}
}
