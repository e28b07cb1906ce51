package storage

import (
	"context"
	"time"

	"github.com/iudanet/questline/internal/models"
)

// SessionStorage defines interface for per-device session persistence
type SessionStorage interface {
	// UpsertSession inserts a session or overwrites the one with the same (UserID, UserAgent).
	// On return session.ID and session.CreatedAt hold the stored row values.
	UpsertSession(ctx context.Context, session *models.Session) error

	// GetSession retrieves session by ID
	// Returns ErrSessionNotFound if session doesn't exist
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// GetSessionByUserAgent retrieves the session of a user's device
	// Returns ErrSessionNotFound if session doesn't exist
	GetSessionByUserAgent(ctx context.Context, userID, userAgent string) (*models.Session, error)

	// ListUserSessions returns all sessions of a user
	// Returns empty slice if no sessions found
	ListUserSessions(ctx context.Context, userID string) ([]*models.Session, error)

	// ListSessions returns every stored session
	ListSessions(ctx context.Context) ([]*models.Session, error)

	// DeleteSession deletes session by ID
	// Returns ErrSessionNotFound if session doesn't exist
	DeleteSession(ctx context.Context, sessionID string) error

	// DeleteUserSessions deletes all sessions of a user
	// Returns number of deleted sessions
	DeleteUserSessions(ctx context.Context, userID string) (int, error)

	// DeleteExpiredSessions removes sessions that expired before now
	// Returns number of deleted sessions
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}
