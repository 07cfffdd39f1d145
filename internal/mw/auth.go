package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campus-bus-backend/internal/account"
	"campus-bus-backend/internal/model"
)

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (*account.Claims, error)
}

// Auth rejects requests without a valid bearer token and stores the caller's
// id and role on the context.
func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, http.StatusUnauthorized, "unauthorized", "not authorized, no token")
			return
		}

		claims, err := tokens.Parse(parts[1])
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "not authorized, token failed")
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(roleKey, string(claims.Role))
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed. It must run after Auth.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "forbidden", "role "+string(role)+" is not allowed to access this resource")
	}
}

// UserID returns the authenticated caller's id.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// Role returns the authenticated caller's role.
func Role(c *gin.Context) model.Role {
	return model.Role(c.GetString(roleKey))
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code, "request_id": GetRequestID(c)})
}
