package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/identity"
	"github.com/iudanet/questline/internal/server/session"
)

// Authenticator verifies and rotates token pairs
type Authenticator interface {
	ValidateAccessToken(token string) (models.UserPublic, error)
	ResolveRefreshOwner(ctx context.Context, token string) (*models.Session, error)
	RotateTokens(ctx context.Context, user models.UserPublic, client session.ClientInfo) (session.TokenPair, error)
	WriteClientState(w http.ResponseWriter, pair session.TokenPair)
	ClearClientState(w http.ResponseWriter)
}

// UserLookup loads the current public view of a user
type UserLookup interface {
	Get(ctx context.Context, userID string) (models.UserPublic, error)
}

// RoleLookup returns role names of a user
type RoleLookup interface {
	UserRoles(ctx context.Context, userID string) ([]string, error)
}

// Gate resolves the caller of a non-public route.
//
// A valid access token is enough. Otherwise the refresh cookie is resolved to
// its session, the pair is rotated and written back to the client. Any failure,
// a panic inside the lookups included, clears the client credentials and ends
// the request with 401.
func Gate(logger *slog.Logger, auth Authenticator, users UserLookup, roles RoleLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, ok := authenticate(logger, auth, users, roles, w, r)
			if !ok {
				return
			}
			// Паника обработчика уже не относится к проверке токенов и уходит в Recovery
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate возвращает контекст с identity или пишет 401 и возвращает false
func authenticate(
	logger *slog.Logger,
	auth Authenticator,
	users UserLookup,
	roles RoleLookup,
	w http.ResponseWriter,
	r *http.Request,
) (resolved context.Context, ok bool) {
	ctx := r.Context()

	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		logger.ErrorContext(ctx, "Panic during authentication",
			slog.Any("panic", rec),
			slog.String("stack", string(debug.Stack())),
		)
		deny(w, auth, "authentication failed")
		resolved, ok = nil, false
	}()

	refreshToken := session.RefreshTokenFromRequest(r)

	if access := session.AccessTokenFromRequest(r); access != "" {
		user, err := auth.ValidateAccessToken(access)
		if err == nil {
			if ctx, ok := attachIdentity(ctx, logger, roles, user); ok {
				return identity.WithRefreshToken(ctx, refreshToken), true
			}
			deny(w, auth, "couldn't resolve user roles")
			return nil, false
		}
		logger.DebugContext(ctx, "Access token rejected", slog.Any("error", err))
	}

	if refreshToken == "" {
		deny(w, auth, "missing credentials")
		return nil, false
	}

	sess, err := auth.ResolveRefreshOwner(ctx, refreshToken)
	if err != nil {
		logger.WarnContext(ctx, "Refresh token rejected",
			slog.String("ip", ClientIP(r)),
			slog.Any("error", err),
		)
		deny(w, auth, "invalid or expired token")
		return nil, false
	}

	user, err := users.Get(ctx, sess.UserID)
	if err != nil {
		logger.WarnContext(ctx, "Refresh token owner not found", slog.String("user_id", sess.UserID), slog.Any("error", err))
		deny(w, auth, "invalid or expired token")
		return nil, false
	}

	pair, err := auth.RotateTokens(ctx, user, session.ClientInfo{UserAgent: r.UserAgent(), IP: ClientIP(r)})
	if err != nil {
		logger.ErrorContext(ctx, "Token rotation failed", slog.String("user_id", user.UUID), slog.Any("error", err))
		deny(w, auth, "couldn't refresh session")
		return nil, false
	}
	auth.WriteClientState(w, pair)

	withID, found := attachIdentity(ctx, logger, roles, user)
	if !found {
		deny(w, auth, "couldn't resolve user roles")
		return nil, false
	}

	return identity.WithRefreshToken(withID, pair.RefreshToken), true
}

func attachIdentity(ctx context.Context, logger *slog.Logger, roles RoleLookup, user models.UserPublic) (context.Context, bool) {
	names, err := roles.UserRoles(ctx, user.UUID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load user roles", slog.String("user_id", user.UUID), slog.Any("error", err))
		return ctx, false
	}

	logger.DebugContext(ctx, "User authenticated", slog.String("user_id", user.UUID), slog.Any("roles", names))
	return identity.WithIdentity(ctx, models.Identity{Roles: names, UserPublic: user}), true
}

func deny(w http.ResponseWriter, auth Authenticator, message string) {
	auth.ClearClientState(w)
	writeError(w, http.StatusUnauthorized, "unauthorized", message)
}

// RequireRoles admits callers with at least one of the roles. OWNER always
// passes and an empty role list admits every authenticated caller.
func RequireRoles(logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identity.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}

			if HasAnyRole(id, roles...) {
				next.ServeHTTP(w, r)
				return
			}

			logger.WarnContext(r.Context(), "Role check failed",
				slog.String("user_id", id.UUID),
				slog.Any("required", roles),
				slog.Any("roles", id.Roles),
			)
			writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
		})
	}
}

// HasAnyRole applies the role rule without a request
func HasAnyRole(id models.Identity, roles ...string) bool {
	if len(roles) == 0 || id.HasRole(models.RoleOwner) {
		return true
	}
	for _, role := range roles {
		if id.HasRole(role) {
			return true
		}
	}
	return false
}
