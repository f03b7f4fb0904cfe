package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/harbor-academy/backend/internal/auth"
	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextUserName is the key for the user's full name in gin context.
	ContextUserName = "user_name"

	// QueryToken carries the bearer token on WebSocket handshakes, where
	// browsers cannot set an Authorization header.
	QueryToken = "token"
)

// bearer extracts the token from the Authorization header, or from the
// token query parameter on WebSocket upgrade requests only.
func bearer(c *gin.Context) (string, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if isUpgrade(c) {
			if t := c.Query(QueryToken); t != "" {
				return t, ""
			}
		}
		return "", "missing authorization header"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "invalid authorization header"
	}
	return parts[1], ""
}

func isUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(c.GetHeader("Connection")), "upgrade")
}

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearer(c)
		if problem != "" {
			response.Unauthorized(c, problem)
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextUserName, claims.Name)
		c.Next()
	}
}

// Agent returns the authenticated caller as a gate agent, named by full name,
// then email, then the audit placeholder.
func Agent(c *gin.Context) models.Agent {
	a := models.Agent{ID: c.MustGet(ContextUserID).(uuid.UUID), Name: c.GetString(ContextUserName)}
	if a.Name == "" {
		a.Name = c.GetString(ContextUserEmail)
	}
	if a.Name == "" {
		a.Name = models.AuditPlaceholder
	}
	return a
}
