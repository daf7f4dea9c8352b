package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/poll-miniapp/backend/internal/auth"
	"github.com/poll-miniapp/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserStaff is the key for the staff flag in gin context.
	ContextUserStaff = "user_staff"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates the access token and sets user claims in context.
// The token is read from the Authorization header, or from the "token" query parameter
// for websocket upgrades where browsers cannot set headers.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			response.Unauthorized(c, "missing or invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(raw, auth.TokenAccess)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserStaff, claims.Staff)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if t := c.Query("token"); t != "" {
			return t, true
		}
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
