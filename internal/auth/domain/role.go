package domain

import (
	"slices"
	"time"
)

const (
	RoleAdmin   = "Admin"
	RoleClient  = "Client"
	RoleLivreur = "Livreur"
)

// DefaultRole is assigned when a registration names no roles.
const DefaultRole = RoleClient

// RoleNames lists every name a role may carry. They are seeded at startup.
var RoleNames = []string{RoleAdmin, RoleClient, RoleLivreur}

type Role struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func ValidRoleName(name string) bool {
	return slices.Contains(RoleNames, name)
}

// SelfAssignable reports whether a role may be picked at registration.
func SelfAssignable(name string) bool {
	return name != RoleAdmin
}
