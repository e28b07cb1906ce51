package credentials

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/crypto"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/storage/sqlstore"
)

func setupService(t *testing.T, opts ...Option) (*Service, *sqlstore.Storage) {
	t.Helper()

	store, err := sqlstore.New(context.Background(), sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, store, crypto.NewHasher(4), opts...), store
}

// failingRoles wraps a real store and breaks role assignment
type failingRoles struct {
	*sqlstore.Storage
}

func (f failingRoles) AssignRole(context.Context, string, string, string) error {
	return errors.New("disk full")
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)

	user, err := svc.Register(ctx, "alice", "alice@example.com", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, user.UUID)
	assert.Equal(t, "alice", user.Login)
	assert.False(t, user.IsEmailConfirmed)

	roles, err := store.GetUserRoles(ctx, user.UUID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleUser}, roles)

	stored, err := store.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", stored.PasswordHash)
}

func TestService_RegisterConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Register(ctx, "alice", "alice@example.com", "secret")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other@example.com", "secret")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.Register(ctx, "alice2", "alice@example.com", "secret")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	tests := []struct {
		name     string
		login    string
		email    string
		password string
	}{
		{name: "short login", login: "al", email: "a@example.com", password: "secret"},
		{name: "bad login chars", login: "al ice", email: "a@example.com", password: "secret"},
		{name: "bad email", login: "alice", email: "not-an-email", password: "secret"},
		{name: "short password", login: "alice", email: "a@example.com", password: "abc"},
		{name: "long password", login: "alice", email: "a@example.com", password: "abcdefghijklmnopqrstuvwxyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.login, tt.email, tt.password)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestService_RegisterOwner(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t, WithOwnerLogin("root"))

	owner, err := svc.Register(ctx, "root", "root@example.com", "secret")
	require.NoError(t, err)

	roles, err := store.GetUserRoles(ctx, owner.UUID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.RoleOwner, models.RoleUser}, roles)
}

func TestService_RegisterRollsBackOnRoleFailure(t *testing.T) {
	ctx := context.Background()
	_, store := setupService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(logger, failingRoles{store}, crypto.NewHasher(4))

	_, err := svc.Register(ctx, "alice", "alice@example.com", "secret")
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestService_Verify(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	registered, err := svc.Register(ctx, "alice", "alice@example.com", "secret")
	require.NoError(t, err)

	user, err := svc.Verify(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, registered.UUID, user.UUID)

	_, err = svc.Verify(ctx, "alice", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.Equal(t, "invalid credentials", apperr.Message(err))

	_, err = svc.Verify(ctx, "nobody", "secret")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.Equal(t, "invalid credentials", apperr.Message(err))
}

func TestService_GetListDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	alice, err := svc.Register(ctx, "alice", "alice@example.com", "secret")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "bobby", "bob@example.com", "secret")
	require.NoError(t, err)

	got, err := svc.Get(ctx, alice.UUID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, svc.Delete(ctx, alice.UUID))

	_, err = svc.Get(ctx, alice.UUID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = svc.Delete(ctx, alice.UUID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
