// Package router compiles the route table into an http.Handler.
package router

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/handlers"
	"github.com/iudanet/questline/internal/server/metrics"
	"github.com/iudanet/questline/internal/server/middleware"
)

// Route describes one endpoint and who may call it.
// Public routes skip the gate; an empty Roles list admits any authenticated caller.
type Route struct {
	Handler http.HandlerFunc
	Method  string
	Path    string
	Roles   []string
	Public  bool
}

// Handlers groups the resource handlers served by the router
type Handlers struct {
	Auth   *handlers.AuthHandler
	User   *handlers.UserHandler
	Task   *handlers.TaskHandler
	Quest  *handlers.QuestHandler
	Role   *handlers.RoleHandler
	Health *handlers.HealthHandler
}

// Config holds everything the router wires together
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Auth           middleware.Authenticator
	Users          middleware.UserLookup
	Roles          middleware.RoleLookup
	AuthLimiter    *middleware.RateLimiter
	DefaultLimiter *middleware.RateLimiter
	Handlers       Handlers
	AllowedOrigins []string
}

// Routes returns the route table
func Routes(h Handlers) []Route {
	var (
		user      = []string{models.RoleUser}
		admin     = []string{models.RoleAdmin}
		dev       = []string{models.RoleDev}
		adminOrDv = []string{models.RoleAdmin, models.RoleDev}
	)

	return []Route{
		{Method: http.MethodPost, Path: "/auth/signup", Public: true, Handler: h.Auth.Signup},
		{Method: http.MethodPost, Path: "/auth/login", Public: true, Handler: h.Auth.Login},
		{Method: http.MethodPost, Path: "/auth/refresh", Public: true, Handler: h.Auth.Refresh},
		{Method: http.MethodGet, Path: "/auth/activate/{code}", Public: true, Handler: h.Auth.Activate},
		{Method: http.MethodPost, Path: "/auth/logout", Handler: h.Auth.Logout},

		{Method: http.MethodGet, Path: "/task/all", Roles: admin, Handler: h.Task.All},
		{Method: http.MethodGet, Path: "/task", Roles: user, Handler: h.Task.List},
		{Method: http.MethodPost, Path: "/task", Roles: user, Handler: h.Task.Create},
		{Method: http.MethodPatch, Path: "/task/check", Roles: user, Handler: h.Task.Check},
		{Method: http.MethodPatch, Path: "/task/complete", Roles: user, Handler: h.Task.Complete},
		{Method: http.MethodPatch, Path: "/task/fail", Roles: user, Handler: h.Task.Fail},
		{Method: http.MethodPatch, Path: "/task/quest", Roles: user, Handler: h.Task.AddToQuest},
		{Method: http.MethodDelete, Path: "/task", Roles: user, Handler: h.Task.Delete},
		{Method: http.MethodGet, Path: "/task/types", Roles: adminOrDv, Handler: h.Task.Types},
		{Method: http.MethodPost, Path: "/task/types", Roles: dev, Handler: h.Task.CreateType},
		{Method: http.MethodPatch, Path: "/task/types", Roles: dev, Handler: h.Task.UpdateType},

		{Method: http.MethodGet, Path: "/quest/all", Roles: adminOrDv, Handler: h.Quest.All},
		{Method: http.MethodGet, Path: "/quest", Handler: h.Quest.List},
		{Method: http.MethodGet, Path: "/quest/q", Handler: h.Quest.Get},
		{Method: http.MethodPost, Path: "/quest", Handler: h.Quest.Create},
		{Method: http.MethodPost, Path: "/quest/task", Handler: h.Quest.AddTask},
		{Method: http.MethodPatch, Path: "/quest/start", Handler: h.Quest.Start},
		{Method: http.MethodPatch, Path: "/quest/complete", Handler: h.Quest.Complete},
		{Method: http.MethodDelete, Path: "/quest", Handler: h.Quest.Delete},

		{Method: http.MethodGet, Path: "/roles", Roles: adminOrDv, Handler: h.Role.List},
		{Method: http.MethodGet, Path: "/roles/users", Roles: admin, Handler: h.Role.Users},
		{Method: http.MethodPost, Path: "/roles/assign", Roles: admin, Handler: h.Role.Assign},
		{Method: http.MethodPost, Path: "/roles/unassign", Roles: admin, Handler: h.Role.Unassign},
		{Method: http.MethodPost, Path: "/roles", Roles: dev, Handler: h.Role.Create},
		{Method: http.MethodPatch, Path: "/roles", Roles: dev, Handler: h.Role.Update},
		{Method: http.MethodDelete, Path: "/roles/{name}", Roles: dev, Handler: h.Role.Delete},

		{Method: http.MethodGet, Path: "/user", Roles: admin, Handler: h.User.List},
		{Method: http.MethodDelete, Path: "/user", Roles: admin, Handler: h.User.Delete},
		{Method: http.MethodGet, Path: "/user/me", Handler: h.User.Me},
		{Method: http.MethodGet, Path: "/user/sessions", Handler: h.User.Sessions},
		{Method: http.MethodDelete, Path: "/user/sessions", Handler: h.User.RevokeSession},

		{Method: http.MethodGet, Path: "/health", Public: true, Handler: h.Health.Health},
	}
}

// New mounts the route table on a ServeMux and wraps it with the global chain:
// CORS, recovery, request logging, rate limiting and metrics.
func New(cfg Config) http.Handler {
	mux := http.NewServeMux()

	gate := middleware.Gate(cfg.Logger, cfg.Auth, cfg.Users, cfg.Roles)
	for _, route := range Routes(cfg.Handlers) {
		mux.Handle(route.Method+" "+route.Path, protect(cfg.Logger, gate, route))
	}
	mux.Handle("GET /metrics", cfg.Metrics.Handler())

	// Instrument должен оборачивать mux напрямую: ServeMux выставляет r.Pattern
	// на том же *http.Request, который получил
	var handler http.Handler = cfg.Metrics.Instrument(mux)
	handler = middleware.RateLimitByPath(cfg.AuthLimiter, cfg.DefaultLimiter, "/auth/")(handler)
	handler = middleware.Logging(cfg.Logger, "/health", "/metrics")(handler)
	handler = middleware.Recovery(cfg.Logger)(handler)
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)

	return handler
}

func protect(logger *slog.Logger, gate func(http.Handler) http.Handler, route Route) http.Handler {
	if route.Public {
		return route.Handler
	}
	return gate(middleware.RecordCaller(middleware.RequireRoles(logger, route.Roles...)(route.Handler)))
}
