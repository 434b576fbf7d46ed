package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ticketdesk/utils"
)

// Context keys set by Authenticate.
const (
	CtxUserID = "userId"
	CtxRole   = "userRole"
	CtxEmail  = "userEmail"
)

// Authenticate verifies the Authorization header (raw token or
// "Bearer <token>") and puts the caller's id and role on the context.
func Authenticate(c *gin.Context) {
	token := strings.TrimSpace(c.GetHeader("Authorization"))
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized."})
		return
	}

	claims, err := utils.VerifyToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized."})
		return
	}

	c.Set(CtxUserID, claims.UserID)
	c.Set(CtxRole, claims.Role)
	c.Set(CtxEmail, claims.Email)
	c.Next()
}

// RequireRole lets through only callers whose token carries one of roles.
// It must run after Authenticate.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Not allowed for this role."})
	}
}
