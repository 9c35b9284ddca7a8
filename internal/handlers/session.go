package handlers

import (
	"wordgames/internal/middleware"

	"github.com/gin-gonic/gin"
)

// GetUserIDFromSession returns the user id stored by middleware.RequireAuth.
// Returns (0, false) when the request was not authenticated.
func GetUserIDFromSession(c *gin.Context) (int, bool) {
	id := c.GetInt(middleware.UserIDKey)
	if id <= 0 {
		return 0, false
	}
	return id, true
}
