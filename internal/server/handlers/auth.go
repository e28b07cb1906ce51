package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/server/credentials"
	"github.com/iudanet/questline/internal/server/identity"
	"github.com/iudanet/questline/internal/server/middleware"
	"github.com/iudanet/questline/internal/server/session"
	"github.com/iudanet/questline/pkg/api"
)

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger   *slog.Logger
	users    *credentials.Service
	sessions *session.Manager
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, users *credentials.Service, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		users:    users,
		sessions: sessions,
	}
}

// Signup обрабатывает POST /auth/signup
// Регистрирует пользователя и сразу открывает сессию для текущего устройства
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	user, err := h.users.Register(ctx, req.Login, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "Signup failed", slog.String("login", req.Login), slog.Any("error", err))
		sendError(ctx, h.logger, w, err)
		return
	}

	pair, err := h.sessions.RotateTokens(ctx, user, clientInfo(r))
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	h.sessions.WriteClientState(w, pair)

	sendJSON(ctx, h.logger, w, toAuthResponse(user, pair), http.StatusCreated)
}

// Login обрабатывает POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	user, err := h.users.Verify(ctx, req.Login, req.Password)
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}

	pair, err := h.sessions.RotateTokens(ctx, user, clientInfo(r))
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	h.sessions.WriteClientState(w, pair)

	h.logger.InfoContext(ctx, "User logged in",
		slog.String("user_id", user.UUID),
		slog.String("ip", middleware.ClientIP(r)),
	)

	sendJSON(ctx, h.logger, w, toAuthResponse(user, pair), http.StatusOK)
}

// Refresh обрабатывает POST /auth/refresh
// Меняет пару токенов по refresh cookie без access токена
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := session.RefreshTokenFromRequest(r)
	if token == "" {
		h.sessions.ClearClientState(w)
		sendError(ctx, h.logger, w, apperr.Unauthorized("refresh token is required"))
		return
	}

	sess, err := h.sessions.ResolveRefreshOwner(ctx, token)
	if err != nil {
		h.logger.WarnContext(ctx, "Refresh rejected", slog.String("ip", middleware.ClientIP(r)), slog.Any("error", err))
		h.sessions.ClearClientState(w)
		sendError(ctx, h.logger, w, apperr.Unauthorized("invalid or expired refresh token"))
		return
	}

	user, err := h.users.Get(ctx, sess.UserID)
	if err != nil {
		h.sessions.ClearClientState(w)
		if apperr.Is(err, apperr.KindNotFound) {
			err = apperr.Unauthorized("invalid or expired refresh token")
		}
		sendError(ctx, h.logger, w, err)
		return
	}

	pair, err := h.sessions.RotateTokens(ctx, user, clientInfo(r))
	if err != nil {
		sendError(ctx, h.logger, w, err)
		return
	}
	h.sessions.WriteClientState(w, pair)

	sendJSON(ctx, h.logger, w, toAuthResponse(user, pair), http.StatusOK)
}

// Logout обрабатывает POST /auth/logout
// Удаляет сессию текущего устройства. Если Gate только что выполнил ротацию,
// удаляется уже новая сессия.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if token, ok := identity.RefreshTokenFromContext(ctx); ok {
		h.sessions.Revoke(ctx, token)
	}
	h.sessions.ClearClientState(w)

	sendJSON(ctx, h.logger, w, api.MessageResponse{Message: "logged out"}, http.StatusOK)
}

// Activate обрабатывает GET /auth/activate/{code}
// Подтверждение email не реализовано: письма с кодом не отправляются
func (h *AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	sendJSON(r.Context(), h.logger, w, api.ErrorResponse{
		Error:   "not_implemented",
		Message: "email activation is not available",
	}, http.StatusNotImplemented)
}

func clientInfo(r *http.Request) session.ClientInfo {
	return session.ClientInfo{
		UserAgent: r.UserAgent(),
		IP:        middleware.ClientIP(r),
	}
}
