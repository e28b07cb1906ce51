package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/server/roles"
	"github.com/iudanet/questline/pkg/api"
)

// RoleHandler serves /roles routes
type RoleHandler struct {
	logger *slog.Logger
	roles  *roles.Service
}

// NewRoleHandler creates a role handler
func NewRoleHandler(logger *slog.Logger, roles *roles.Service) *RoleHandler {
	return &RoleHandler{logger: logger, roles: roles}
}

// List handles GET /roles
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.roles.List(ctx)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	out := make([]api.Role, 0, len(list))
	for _, role := range list {
		out = append(out, toAPIRole(role))
	}
	sendJSON(ctx, h.logger, w, out, http.StatusOK)
}

// Users handles GET /roles/users
func (h *RoleHandler) Users(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.roles.UsersWithRoles(ctx)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	out := make([]api.UserWithRoles, 0, len(users))
	for _, u := range users {
		out = append(out, api.UserWithRoles{Roles: u.Roles, User: toAPIUser(u.UserPublic)})
	}
	sendJSON(ctx, h.logger, w, out, http.StatusOK)
}

// Create handles POST /roles
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	role, err := h.roles.Create(ctx, req.Name, req.Description)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPIRole(role), http.StatusCreated)
}

// Update handles PATCH /roles
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	role, err := h.roles.Update(ctx, req.Name, req.Description)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, toAPIRole(role), http.StatusOK)
}

// Delete handles DELETE /roles/{name}
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name := r.PathValue("name")
	if name == "" {
		sendError(ctx, h.logger, w, apperr.Validation("role name is required"))
		return
	}

	if err := h.roles.Delete(ctx, name); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, api.MessageResponse{Message: "role deleted"}, http.StatusOK)
}

// Assign handles POST /roles/assign
func (h *RoleHandler) Assign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := caller(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	var req api.AssignRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	if err := h.roles.Assign(ctx, req.Login, req.Role, id.UUID); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, api.MessageResponse{Message: "role assigned"}, http.StatusOK)
}

// Unassign handles POST /roles/unassign
func (h *RoleHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.AssignRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	if err := h.roles.Unassign(ctx, req.Login, req.Role); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, api.MessageResponse{Message: "role unassigned"}, http.StatusOK)
}
