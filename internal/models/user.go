package models

import "github.com/google/uuid"

// Role is a row in user_roles.
type Role string

// RoleAdmin grants the upload and upload-URL endpoints.
const RoleAdmin Role = "admin"

// Principal is the identity resolved from a bearer token.
type Principal struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	Roles  []Role    `json:"roles,omitempty"`
}

// HasRole reports whether the principal carries role r.
func (p *Principal) HasRole(r Role) bool {
	if p == nil {
		return false
	}
	for _, have := range p.Roles {
		if have == r {
			return true
		}
	}
	return false
}
