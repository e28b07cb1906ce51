// Package roles manages the role catalog and user role assignments.
package roles

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/storage"
)

var rolePattern = regexp.MustCompile(`^[A-Z_]{3,40}$`)

// Store is the persistence the role service needs
type Store interface {
	storage.RoleStorage
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// Service manages roles
type Service struct {
	logger *slog.Logger
	store  Store
	now    func() time.Time
}

// New creates a role service
func New(logger *slog.Logger, store Store) *Service {
	return &Service{logger: logger, store: store, now: time.Now}
}

// List returns the role catalog
func (s *Service) List(ctx context.Context) ([]*models.Role, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, apperr.Unavailable("couldn't list roles", err)
	}
	return roles, nil
}

// Create adds a role to the catalog
func (s *Service) Create(ctx context.Context, name, description string) (*models.Role, error) {
	if !rolePattern.MatchString(name) {
		return nil, apperr.Validation("role name must match %s", rolePattern.String())
	}

	now := s.now()
	role := &models.Role{Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateRole(ctx, role); err != nil {
		if errors.Is(err, storage.ErrRoleAlreadyExists) {
			return nil, apperr.Validation("role %q already exists", name)
		}
		if _, gerr := s.store.GetRole(ctx, name); gerr == nil {
			return nil, apperr.Validation("role %q already exists", name)
		}
		return nil, apperr.Unavailable("couldn't create role", err)
	}

	s.logger.InfoContext(ctx, "Role created", slog.String("role", name))
	return role, nil
}

// Update changes the description of a role
func (s *Service) Update(ctx context.Context, name, description string) (*models.Role, error) {
	role := &models.Role{Name: name, Description: description, UpdatedAt: s.now()}
	if err := s.store.UpdateRole(ctx, role); err != nil {
		return nil, s.missingRoleOr(ctx, name, "couldn't update role", err)
	}

	updated, err := s.store.GetRole(ctx, name)
	if err != nil {
		return nil, apperr.Unavailable("couldn't get role", err)
	}
	return updated, nil
}

// Delete removes a custom role. Built-in roles cannot be deleted.
func (s *Service) Delete(ctx context.Context, name string) error {
	if models.IsKnownRole(name) {
		return apperr.Validation("built-in role %q cannot be deleted", name)
	}
	if err := s.store.DeleteRole(ctx, name); err != nil {
		return s.missingRoleOr(ctx, name, "couldn't delete role", err)
	}

	s.logger.InfoContext(ctx, "Role deleted", slog.String("role", name))
	return nil
}

// Assign grants a role to the user with the given login
func (s *Service) Assign(ctx context.Context, login, role, assignedBy string) error {
	user, err := s.resolve(ctx, login, role)
	if err != nil {
		return err
	}

	if err := s.store.AssignRole(ctx, user.ID, role, assignedBy); err != nil {
		if errors.Is(err, storage.ErrRoleAlreadyAssigned) {
			return apperr.Conflict("user %q already has role %q", login, role)
		}
		return apperr.Unavailable("couldn't assign role", err)
	}

	s.logger.InfoContext(ctx, "Role assigned",
		slog.String("user_id", user.ID),
		slog.String("role", role),
		slog.String("assigned_by", assignedBy),
	)
	return nil
}

// Unassign removes a role from the user with the given login
func (s *Service) Unassign(ctx context.Context, login, role string) error {
	user, err := s.resolve(ctx, login, role)
	if err != nil {
		return err
	}

	if err := s.store.UnassignRole(ctx, user.ID, role); err != nil {
		if errors.Is(err, storage.ErrRoleNotFound) {
			return apperr.Validation("user %q doesn't have role %q", login, role)
		}
		return apperr.Unavailable("couldn't unassign role", err)
	}

	s.logger.InfoContext(ctx, "Role unassigned", slog.String("user_id", user.ID), slog.String("role", role))
	return nil
}

// UserRoles returns role names of a user
func (s *Service) UserRoles(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.store.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, apperr.Unavailable("couldn't get user roles", err)
	}
	return roles, nil
}

// UsersWithRoles lists every user together with its roles
func (s *Service) UsersWithRoles(ctx context.Context) ([]models.UserWithRoles, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Unavailable("couldn't list users", err)
	}

	out := make([]models.UserWithRoles, 0, len(users))
	for _, u := range users {
		names, err := s.store.GetUserRoles(ctx, u.ID)
		if err != nil {
			return nil, apperr.Unavailable("couldn't get user roles", err)
		}
		out = append(out, models.UserWithRoles{Roles: names, UserPublic: u.Public()})
	}
	return out, nil
}

func (s *Service) resolve(ctx context.Context, login, role string) (*models.User, error) {
	user, err := s.store.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apperr.Validation("user %q doesn't exist", login)
		}
		return nil, apperr.Unavailable("couldn't get user", err)
	}

	if _, err := s.store.GetRole(ctx, role); err != nil {
		if errors.Is(err, storage.ErrRoleNotFound) {
			return nil, apperr.Validation("role %q doesn't exist", role)
		}
		return nil, apperr.Unavailable("couldn't get role", err)
	}

	return user, nil
}

// missingRoleOr re-checks the role after a failed mutation
func (s *Service) missingRoleOr(ctx context.Context, name, msg string, err error) error {
	if errors.Is(err, storage.ErrRoleNotFound) {
		return apperr.Validation("role %q doesn't exist", name)
	}
	if _, gerr := s.store.GetRole(ctx, name); errors.Is(gerr, storage.ErrRoleNotFound) {
		return apperr.Validation("role %q doesn't exist", name)
	}
	return apperr.Unavailable(msg, err)
}
