package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/questline/internal/crypto"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/scheduler"
	"github.com/iudanet/questline/internal/server/credentials"
	"github.com/iudanet/questline/internal/server/identity"
	"github.com/iudanet/questline/internal/server/roles"
	"github.com/iudanet/questline/internal/server/session"
	"github.com/iudanet/questline/internal/server/storage/sqlstore"
	"github.com/iudanet/questline/internal/server/tracker"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store    *sqlstore.Storage
	sched    *scheduler.Manual
	users    *credentials.Service
	sessions *session.Manager
	roles    *roles.Service
	tracker  *tracker.Service
	auth     *AuthHandler
	user     *UserHandler
	task     *TaskHandler
	quest    *QuestHandler
	role     *RoleHandler
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlstore.New(context.Background(), sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := setupTestLogger()
	hasher := crypto.NewHasher(4)
	sched := scheduler.NewManual(time.Now())

	users := credentials.New(logger, store, hasher)
	sessions := session.NewManager(logger, store, hasher, sched, session.Config{
		AccessSecret:  []byte("access-secret-0123456789"),
		RefreshSecret: []byte("refresh-secret-0123456789"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	})
	roleSvc := roles.New(logger, store)
	trackerSvc := tracker.New(logger, store, sched)

	return &testEnv{
		store:    store,
		sched:    sched,
		users:    users,
		sessions: sessions,
		roles:    roleSvc,
		tracker:  trackerSvc,
		auth:     NewAuthHandler(logger, users, sessions),
		user:     NewUserHandler(logger, users, roleSvc, sessions),
		task:     NewTaskHandler(logger, trackerSvc),
		quest:    NewQuestHandler(logger, trackerSvc),
		role:     NewRoleHandler(logger, roleSvc),
	}
}

// register creates a user and returns the identity the gate would attach
func (e *testEnv) register(t *testing.T, login string, extraRoles ...string) models.Identity {
	t.Helper()
	ctx := context.Background()

	user, err := e.users.Register(ctx, login, login+"@example.com", "secret")
	require.NoError(t, err)
	for _, role := range extraRoles {
		require.NoError(t, e.roles.Assign(ctx, login, role, ""))
	}

	names, err := e.roles.UserRoles(ctx, user.UUID)
	require.NoError(t, err)
	return models.Identity{Roles: names, UserPublic: user}
}

func newRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("User-Agent", "handlers-test")
	return req
}

func as(req *http.Request, id models.Identity) *http.Request {
	return req.WithContext(identity.WithIdentity(req.Context(), id))
}

func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func refreshCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == session.RefreshCookieName {
			return c
		}
	}
	return nil
}
