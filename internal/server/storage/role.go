package storage

import (
	"context"

	"github.com/iudanet/questline/internal/models"
)

// RoleStorage defines interface for the role catalog and user role assignments
type RoleStorage interface {
	// ListRoles returns the role catalog ordered by name
	ListRoles(ctx context.Context) ([]*models.Role, error)

	// GetRole retrieves role by name
	// Returns ErrRoleNotFound if role doesn't exist
	GetRole(ctx context.Context, name string) (*models.Role, error)

	// CreateRole adds a role to the catalog
	// Returns ErrRoleAlreadyExists on duplicate name
	CreateRole(ctx context.Context, role *models.Role) error

	// UpdateRole updates the description of a role
	// Returns ErrRoleNotFound if role doesn't exist
	UpdateRole(ctx context.Context, role *models.Role) error

	// DeleteRole removes a role and its assignments
	// Returns ErrRoleNotFound if role doesn't exist
	DeleteRole(ctx context.Context, name string) error

	// AssignRole links a role to a user
	// Returns ErrRoleAlreadyAssigned if the link exists
	AssignRole(ctx context.Context, userID, role, assignedBy string) error

	// UnassignRole removes a role from a user
	// Returns ErrRoleNotFound if the link doesn't exist
	UnassignRole(ctx context.Context, userID, role string) error

	// GetUserRoles returns role names of a user ordered by name
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
}

// Storage aggregates every persistence capability of the server
type Storage interface {
	UserStorage
	SessionStorage
	TaskStorage
	TaskTypeStorage
	QuestStorage
	RoleStorage
	Ping(ctx context.Context) error
	Close() error
}
