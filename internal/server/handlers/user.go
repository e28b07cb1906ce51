package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/questline/internal/server/credentials"
	"github.com/iudanet/questline/internal/server/roles"
	"github.com/iudanet/questline/internal/server/session"
	"github.com/iudanet/questline/pkg/api"
)

// UserHandler serves the caller's profile and sessions plus user administration
type UserHandler struct {
	logger   *slog.Logger
	users    *credentials.Service
	roles    *roles.Service
	sessions *session.Manager
}

// NewUserHandler creates a user handler
func NewUserHandler(logger *slog.Logger, users *credentials.Service, roles *roles.Service, sessions *session.Manager) *UserHandler {
	return &UserHandler{logger: logger, users: users, roles: roles, sessions: sessions}
}

// List handles GET /user
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
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

// Delete handles DELETE /user?uuid=
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := requiredQuery(r, "uuid")
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	// Сначала сессии, чтобы отменить их таймеры
	if err := h.sessions.RevokeAll(ctx, userID); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	if err := h.users.Delete(ctx, userID); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	sendJSON(ctx, h.logger, w, api.MessageResponse{Message: "user deleted"}, http.StatusOK)
}

// Me handles GET /user/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := caller(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	roles := id.Roles
	if roles == nil {
		roles = []string{}
	}
	sendJSON(ctx, h.logger, w, api.Me{Roles: roles, User: toAPIUser(id.UserPublic)}, http.StatusOK)
}

// Sessions handles GET /user/sessions
func (h *UserHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := caller(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	sessions, err := h.sessions.Sessions(ctx, id.UUID)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	out := make([]api.Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toAPISession(s))
	}
	sendJSON(ctx, h.logger, w, out, http.StatusOK)
}

// RevokeSession handles DELETE /user/sessions?id=
func (h *UserHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := caller(r)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sessionID, err := requiredQuery(r, "id")
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	if err := h.sessions.RevokeSession(ctx, id.UUID, sessionID); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	sendJSON(ctx, h.logger, w, api.MessageResponse{Message: "session revoked"}, http.StatusOK)
}
