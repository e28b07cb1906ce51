package models

import "time"

// Built-in role names.
const (
	RoleOwner = "OWNER"
	RoleAdmin = "ADMIN"
	RoleDev   = "DEV"
	RoleUser  = "USER"
)

// KnownRoles is the fixed role catalog.
var KnownRoles = []string{RoleOwner, RoleAdmin, RoleDev, RoleUser}

// IsKnownRole reports whether name belongs to the role catalog.
func IsKnownRole(name string) bool {
	for _, r := range KnownRoles {
		if r == name {
			return true
		}
	}
	return false
}

// Role groups users for route authorization.
type Role struct {
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// UserWithRoles is an admin view of a user and the roles assigned to it.
type UserWithRoles struct {
	Roles []string `json:"roles"`
	UserPublic
}
