package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studymeta/backend/internal/models"
	"github.com/studymeta/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextPrincipal is the key for the resolved *models.Principal.
	ContextPrincipal = "principal"
)

// Authorizer resolves Authorization header values to an admin. Implemented by auth.Gate.
type Authorizer interface {
	RequireAdmin(ctx context.Context, header string) (*models.Principal, error)
}

// RequireAdmin requires a valid bearer token with an admin role row.
func RequireAdmin(gate Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := gate.RequireAdmin(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err, "Authentication failed")
			c.Abort()
			return
		}
		setPrincipal(c, p)
		c.Next()
	}
}

// Principal returns the principal set by RequireAdmin.
func Principal(c *gin.Context) (*models.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*models.Principal)
	return p, ok && p != nil
}

func setPrincipal(c *gin.Context, p *models.Principal) {
	c.Set(ContextPrincipal, p)
	c.Set(ContextUserID, p.UserID)
	c.Set(ContextUserEmail, p.Email)
}

// UserID returns the authenticated user's id, or uuid.Nil.
func UserID(c *gin.Context) uuid.UUID {
	if p, ok := Principal(c); ok {
		return p.UserID
	}
	return uuid.Nil
}
