package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/storage"
)

// ListRoles returns the role catalog ordered by name
func (s *Storage) ListRoles(ctx context.Context) ([]*models.Role, error) {
	rows, err := s.query(ctx, `SELECT name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	roles := make([]*models.Role, 0, len(models.KnownRoles))
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return roles, nil
}

// GetRole retrieves role by name
func (s *Storage) GetRole(ctx context.Context, name string) (*models.Role, error) {
	role, err := scanRole(s.queryRow(ctx, `SELECT name, description, created_at, updated_at FROM roles WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return role, nil
}

// CreateRole adds a role to the catalog
func (s *Storage) CreateRole(ctx context.Context, role *models.Role) error {
	role.CreatedAt = dbTime(role.CreatedAt)
	role.UpdatedAt = dbTime(role.UpdatedAt)

	_, err := s.exec(ctx,
		`INSERT INTO roles (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		role.Name, role.Description, role.CreatedAt, role.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrRoleAlreadyExists
		}
		return fmt.Errorf("failed to insert role: %w", err)
	}

	return nil
}

// UpdateRole updates the description of a role
func (s *Storage) UpdateRole(ctx context.Context, role *models.Role) error {
	role.UpdatedAt = dbTime(role.UpdatedAt)

	res, err := s.exec(ctx,
		`UPDATE roles SET description = ?, updated_at = ? WHERE name = ?`,
		role.Description, role.UpdatedAt, role.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	return affected(res, storage.ErrRoleNotFound)
}

// DeleteRole removes a role and its assignments
func (s *Storage) DeleteRole(ctx context.Context, name string) error {
	res, err := s.exec(ctx, `DELETE FROM roles WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	return affected(res, storage.ErrRoleNotFound)
}

// AssignRole links a role to a user
func (s *Storage) AssignRole(ctx context.Context, userID, role, assignedBy string) error {
	_, err := s.exec(ctx,
		`INSERT INTO user_roles (user_id, role_name, assigned_by, created_at) VALUES (?, ?, ?, ?)`,
		userID, role, assignedBy, dbTime(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrRoleAlreadyAssigned
		}
		return fmt.Errorf("failed to assign role: %w", err)
	}

	return nil
}

// UnassignRole removes a role from a user
func (s *Storage) UnassignRole(ctx context.Context, userID, role string) error {
	res, err := s.exec(ctx, `DELETE FROM user_roles WHERE user_id = ? AND role_name = ?`, userID, role)
	if err != nil {
		return fmt.Errorf("failed to unassign role: %w", err)
	}

	return affected(res, storage.ErrRoleNotFound)
}

// GetUserRoles returns role names of a user ordered by name
func (s *Storage) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.query(ctx, `SELECT role_name FROM user_roles WHERE user_id = ? ORDER BY role_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
	}
	defer rows.Close()

	roles := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan user role: %w", err)
		}
		roles = append(roles, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return roles, nil
}

func scanRole(row rowScanner) (*models.Role, error) {
	var role models.Role
	if err := row.Scan(&role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	role.CreatedAt = role.CreatedAt.UTC()
	role.UpdatedAt = role.UpdatedAt.UTC()
	return &role, nil
}
