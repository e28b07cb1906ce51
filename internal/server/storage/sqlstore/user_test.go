package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/storage"
)

func TestUserStorage_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	user := createTestUser(t, ctx, s, "alice")

	byLogin, err := s.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byLogin.ID)
	assert.Equal(t, "hash", byLogin.PasswordHash)
	assert.True(t, user.CreatedAt.Equal(byLogin.CreatedAt))

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byID, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Login)
}

func TestUserStorage_Duplicates(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestUser(t, ctx, s, "alice")

	tests := []struct {
		name  string
		login string
		email string
	}{
		{name: "duplicate login", login: "alice", email: "other@example.com"},
		{name: "duplicate email", login: "bob", email: "alice@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateUser(ctx, &models.User{
				ID:           uuid.New().String(),
				Login:        tt.login,
				Email:        tt.email,
				PasswordHash: "hash",
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			})
			assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)
		})
	}

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserStorage_NotFound(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.GetUserByLogin(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = s.GetUserByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	err = s.DeleteUser(ctx, uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUserStorage_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	user := createTestUser(t, ctx, s, "alice")
	require.NoError(t, s.AssignRole(ctx, user.ID, models.RoleUser, ""))
	require.NoError(t, s.UpsertSession(ctx, &models.Session{
		ID:               "s1",
		UserID:           user.ID,
		UserAgent:        "curl",
		RefreshTokenHash: "h",
		TokenDigest:      "d",
		ExpiresAt:        time.Now().Add(time.Hour),
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}))

	require.NoError(t, s.DeleteUser(ctx, user.ID))

	sessions, err := s.ListUserSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	roles, err := s.GetUserRoles(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}
