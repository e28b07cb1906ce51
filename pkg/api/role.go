package api

import "time"

// RoleRequest creates or updates a role
type RoleRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=40"`
	Description string `json:"description" validate:"max=500"`
}

// AssignRoleRequest grants or revokes a role by login
type AssignRoleRequest struct {
	Login string `json:"login" validate:"required,login"`
	Role  string `json:"role" validate:"required,min=3,max=40"`
}

// Role is a role catalog entry
type Role struct {
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// UserWithRoles is an admin view of a user
type UserWithRoles struct {
	Roles []string `json:"roles"`
	User
}
