package model

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

const RoleGuest = "guest"

// Claims are the bearer token claims issued by the web frontend.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

func (c *Claims) IsGuest() bool {
	return c.HasRole(RoleGuest)
}

// Identity is the caller associated with a request after authentication.
type Identity struct {
	UserID string
	Guest  bool
}
