package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/crypto"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/scheduler"
	"github.com/iudanet/questline/internal/server/storage/sqlstore"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type countingRecorder struct {
	rotations int
	revoked   map[string]int
}

func (c *countingRecorder) TokensRotated() { c.rotations++ }

func (c *countingRecorder) SessionRevoked(reason string) {
	if c.revoked == nil {
		c.revoked = make(map[string]int)
	}
	c.revoked[reason]++
}

type testEnv struct {
	manager  *Manager
	store    *sqlstore.Storage
	sched    *scheduler.Manual
	recorder *countingRecorder
	user     models.UserPublic
}

func setupManager(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.New(ctx, sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	user := &models.User{
		ID:           "8d3c1f0e-3b1a-4b8e-9f57-1c2d3e4f5a6b",
		Login:        "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		CreatedAt:    testStart,
		UpdatedAt:    testStart,
	}
	require.NoError(t, store.CreateUser(ctx, user))

	sched := scheduler.NewManual(testStart)
	recorder := &countingRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	manager := NewManager(logger, store, crypto.NewHasher(4), sched, Config{
		AccessSecret:  []byte("access-secret-0123456789"),
		RefreshSecret: []byte("refresh-secret-0123456789"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}, WithClock(sched.Now), WithRecorder(recorder))

	return &testEnv{manager: manager, store: store, sched: sched, recorder: recorder, user: user.Public()}
}

func TestValidateAccessToken_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t)

	pair, err := env.manager.IssueTokenPair(env.user)
	require.NoError(t, err)
	assert.Equal(t, testStart.Add(15*time.Minute), pair.AccessExpiresAt)

	got, err := env.manager.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, env.user.UUID, got.UUID)
	assert.Equal(t, "alice", got.Login)

	env.sched.Advance(ctx, 15*time.Minute-time.Second)
	_, err = env.manager.ValidateAccessToken(pair.AccessToken)
	assert.NoError(t, err, "valid one second before exp")

	env.sched.Advance(ctx, time.Second)
	_, err = env.manager.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "invalid at exp")
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	env := setupManager(t)

	pair, err := env.manager.IssueTokenPair(env.user)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "malformed", token: "not.a.token"},
		{name: "refresh token as access", token: pair.RefreshToken},
		{name: "tampered", token: pair.AccessToken + "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.manager.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssueTokenPair_RefreshTokensDiffer(t *testing.T) {
	env := setupManager(t)

	first, err := env.manager.IssueTokenPair(env.user)
	require.NoError(t, err)
	second, err := env.manager.IssueTokenPair(env.user)
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	claims, err := env.manager.parseRefresh(first.RefreshToken, true)
	require.NoError(t, err)
	assert.Equal(t, env.user.UUID, claims.Sub.UUID)
	assert.NotEmpty(t, claims.Sub.Token)
}

func TestRotateTokens_SameDeviceReplacesTimer(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t)
	device := ClientInfo{UserAgent: "firefox", IP: "10.0.0.1"}

	first, err := env.manager.RotateTokens(ctx, env.user, device)
	require.NoError(t, err)
	firstKey := scheduler.TokenExpireKey(crypto.Digest(first.RefreshToken))
	assert.True(t, env.sched.Pending(firstKey))

	second, err := env.manager.RotateTokens(ctx, env.user, device)
	require.NoError(t, err)
	secondKey := scheduler.TokenExpireKey(crypto.Digest(second.RefreshToken))

	assert.False(t, env.sched.Pending(firstKey), "old device timer cancelled")
	assert.Equal(t, []string{secondKey}, env.sched.Keys())

	sessions, err := env.manager.Sessions(ctx, env.user.UUID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	_, err = env.manager.ResolveRefreshOwner(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "rotated token no longer matches")

	sess, err := env.manager.ResolveRefreshOwner(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, env.user.UUID, sess.UserID)
	assert.Equal(t, 2, env.recorder.rotations)
}

func TestRevoke_Idempotent(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t)

	pair, err := env.manager.RotateTokens(ctx, env.user, ClientInfo{UserAgent: "curl"})
	require.NoError(t, err)

	env.manager.Revoke(ctx, pair.RefreshToken)
	env.manager.Revoke(ctx, pair.RefreshToken)
	env.manager.Revoke(ctx, "garbage")
	env.manager.Revoke(ctx, "")

	sessions, err := env.manager.Sessions(ctx, env.user.UUID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Empty(t, env.sched.Keys())
	assert.Equal(t, 1, env.recorder.revoked[ReasonLogout])
}

func TestTwoDevices_IndependentRevocation(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t)

	a, err := env.manager.RotateTokens(ctx, env.user, ClientInfo{UserAgent: "device-a"})
	require.NoError(t, err)
	b, err := env.manager.RotateTokens(ctx, env.user, ClientInfo{UserAgent: "device-b"})
	require.NoError(t, err)

	sessions, err := env.manager.Sessions(ctx, env.user.UUID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
	assert.Len(t, env.sched.Keys(), 2)

	env.manager.Revoke(ctx, a.RefreshToken)

	_, err = env.manager.ResolveRefreshOwner(ctx, a.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	sess, err := env.manager.ResolveRefreshOwner(ctx, b.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "device-b", sess.UserAgent)
	assert.True(t, env.sched.Pending(scheduler.TokenExpireKey(crypto.Digest(b.RefreshToken))))
}

func TestResolveRefreshOwner_MatchesAnySessionOfOwner(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t)

	a, err := env.manager.RotateTokens(ctx, env.user, ClientInfo{UserAgent: "device-a"})
	require.NoError(t, err)
	_, err = env.manager.RotateTokens(ctx, env.user, ClientInfo{UserAgent: "device-b"})
	require.NoError(t, err)

	// Токен устройства A принимается независимо от того, кто его предъявил
	sess, err := env.manager.ResolveRefreshOwner(ctx, a.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "device-a", sess.UserAgent)
}

func TestResolveRefreshOwner_Expired(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t)

	pair, err := env.manager.IssueTokenPair(env.user)
	require.NoError(t, err)

	env.sched.Advance(ctx, 7*24*time.Hour)
	_, err = env.manager.ResolveRefreshOwner(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiryTimer_DeletesSession(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t)

	_, err := env.manager.RotateTokens(ctx, env.user, ClientInfo{UserAgent: "curl"})
	require.NoError(t, err)

	assert.Equal(t, 0, env.sched.Advance(ctx, 7*24*time.Hour-time.Second))
	assert.Equal(t, 1, env.sched.Advance(ctx, time.Second))

	sessions, err := env.manager.Sessions(ctx, env.user.UUID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Equal(t, 1, env.recorder.revoked[ReasonExpired])
}

func TestRevokeSession(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t)

	pair, err := env.manager.RotateTokens(ctx, env.user, ClientInfo{UserAgent: "curl"})
	require.NoError(t, err)
	sess, err := env.manager.ResolveRefreshOwner(ctx, pair.RefreshToken)
	require.NoError(t, err)

	err = env.manager.RevokeSession(ctx, "someone-else", sess.ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, env.manager.RevokeSession(ctx, env.user.UUID, sess.ID))
	assert.Empty(t, env.sched.Keys())

	err = env.manager.RevokeSession(ctx, env.user.UUID, sess.ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRevokeAll(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t)

	for _, ua := range []string{"a", "b", "c"} {
		_, err := env.manager.RotateTokens(ctx, env.user, ClientInfo{UserAgent: ua})
		require.NoError(t, err)
	}

	require.NoError(t, env.manager.RevokeAll(ctx, env.user.UUID))
	assert.Empty(t, env.sched.Keys())
	assert.Equal(t, 3, env.recorder.revoked[ReasonRevoked])
}

func TestRearm(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t)

	stale := &models.Session{
		ID: "stale", UserID: env.user.UUID, UserAgent: "old", RefreshTokenHash: "h1", TokenDigest: "d1",
		ExpiresAt: testStart.Add(-time.Minute), CreatedAt: testStart, UpdatedAt: testStart,
	}
	live := &models.Session{
		ID: "live", UserID: env.user.UUID, UserAgent: "new", RefreshTokenHash: "h2", TokenDigest: "d2",
		ExpiresAt: testStart.Add(time.Hour), CreatedAt: testStart, UpdatedAt: testStart,
	}
	require.NoError(t, env.store.UpsertSession(ctx, stale))
	require.NoError(t, env.store.UpsertSession(ctx, live))

	require.NoError(t, env.manager.Rearm(ctx))

	deadline, ok := env.sched.Deadline(scheduler.TokenExpireKey("d2"))
	require.True(t, ok)
	assert.True(t, deadline.Equal(testStart.Add(time.Hour)))

	sessions, err := env.store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "live", sessions[0].ID)

	env.sched.Advance(ctx, time.Hour)
	sessions, err = env.store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestClientState(t *testing.T) {
	env := setupManager(t)
	env.manager.cfg.SecureCookies = true

	pair, err := env.manager.IssueTokenPair(env.user)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	env.manager.WriteClientState(rec, pair)

	assert.Equal(t, "Bearer "+pair.AccessToken, rec.Header().Get(AuthorizationHeader))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, RefreshCookieName, cookies[0].Name)
	assert.Equal(t, pair.RefreshToken, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)

	// Токены из ответа читаются обратно хелперами запроса
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(AuthorizationHeader, rec.Header().Get(AuthorizationHeader))
	req.AddCookie(cookies[0])
	assert.Equal(t, pair.AccessToken, AccessTokenFromRequest(req))
	assert.Equal(t, pair.RefreshToken, RefreshTokenFromRequest(req))

	cleared := httptest.NewRecorder()
	env.manager.ClearClientState(cleared)
	assert.Empty(t, cleared.Header().Get(AuthorizationHeader))
	cookies = cleared.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestAccessTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "bearer", header: "Bearer abc", want: "abc"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "missing", header: "", want: ""},
		{name: "basic scheme", header: "Basic abc", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(AuthorizationHeader, tt.header)
			}
			assert.Equal(t, tt.want, AccessTokenFromRequest(req))
		})
	}
}
