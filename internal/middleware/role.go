package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/poll-miniapp/backend/pkg/response"
)

// RequireStaff allows only staff accounts. Must run after JWT.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(ContextUserStaff)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if staff, _ := v.(bool); !staff {
			response.Forbidden(c, "staff only")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireEmail allows only callers whose email is in the list. An empty list allows nobody.
func RequireEmail(emails []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		allowed[strings.ToLower(e)] = struct{}{}
	}
	return func(c *gin.Context) {
		email, _ := c.Get(ContextUserEmail)
		s, _ := email.(string)
		if _, ok := allowed[strings.ToLower(s)]; !ok {
			response.Forbidden(c, "not allowed")
			c.Abort()
			return
		}
		c.Next()
	}
}
