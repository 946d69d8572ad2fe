package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymeta/backend/internal/errs"
	"github.com/studymeta/backend/internal/models"
)

// IdentityProvider resolves a bearer token to a user.
type IdentityProvider interface {
	Identify(ctx context.Context, token string) (*models.Principal, error)
}

// RoleStore returns the roles granted to a user.
type RoleStore interface {
	Roles(ctx context.Context, userID uuid.UUID) ([]models.Role, error)
}

// Gate authenticates bearer credentials and checks admin membership.
type Gate struct {
	identity IdentityProvider
	roles    RoleStore
	logger   *zap.Logger
}

// NewGate creates an authorization gate.
func NewGate(identity IdentityProvider, roles RoleStore, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{identity: identity, roles: roles, logger: logger}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errs.ErrUnauthenticated
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("malformed authorization header: %w", errs.ErrUnauthenticated)
	}
	return strings.TrimSpace(parts[1]), nil
}

// Authenticate resolves the header to a principal. Errors are ErrUnauthenticated, ErrInvalidToken or ErrAuthFailure.
func (g *Gate) Authenticate(ctx context.Context, header string) (*models.Principal, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	p, err := g.identity.Identify(ctx, token)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidToken) {
			return nil, errs.ErrInvalidToken
		}
		g.logger.Error("identity lookup failed", zap.Error(err))
		return nil, errs.ErrAuthFailure
	}
	if p == nil || p.UserID == uuid.Nil {
		return nil, errs.ErrInvalidToken
	}
	return p, nil
}

// RequireAdmin authenticates and then requires an admin role row. Lookup failures fail closed.
func (g *Gate) RequireAdmin(ctx context.Context, header string) (*models.Principal, error) {
	p, err := g.Authenticate(ctx, header)
	if err != nil {
		return nil, err
	}
	roles, err := g.roles.Roles(ctx, p.UserID)
	if err != nil {
		g.logger.Error("role lookup failed", zap.Error(err), zap.String("user_id", p.UserID.String()))
		return nil, errs.ErrAuthFailure
	}
	p.Roles = roles
	if !p.HasRole(models.RoleAdmin) {
		return nil, errs.ErrForbidden
	}
	return p, nil
}
