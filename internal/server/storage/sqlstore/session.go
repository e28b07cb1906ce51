package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/storage"
)

const sessionColumns = `id, user_id, user_agent, ip, refresh_token_hash, token_digest, expires_at, created_at, updated_at`

// UpsertSession inserts a session or overwrites the one of the same device.
// Уникальность (user_id, user_agent) обеспечивается только ограничением БД.
func (s *Storage) UpsertSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, user_agent) DO UPDATE SET
			ip = excluded.ip,
			refresh_token_hash = excluded.refresh_token_hash,
			token_digest = excluded.token_digest,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
		RETURNING id
	`

	session.ExpiresAt = dbTime(session.ExpiresAt)
	session.CreatedAt = dbTime(session.CreatedAt)
	session.UpdatedAt = dbTime(session.UpdatedAt)

	err := s.queryRow(ctx, query,
		session.ID,
		session.UserID,
		session.UserAgent,
		session.IP,
		session.RefreshTokenHash,
		session.TokenDigest,
		session.ExpiresAt,
		session.CreatedAt,
		session.UpdatedAt,
	).Scan(&session.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	// При обновлении существующей сессии created_at остается прежним
	stored, err := s.GetSession(ctx, session.ID)
	if err != nil {
		return err
	}
	session.CreatedAt = stored.CreatedAt

	return nil
}

// GetSession retrieves session by ID
func (s *Storage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	session, err := scanSession(s.queryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// GetSessionByUserAgent retrieves the session of a user's device
func (s *Storage) GetSessionByUserAgent(ctx context.Context, userID, userAgent string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = ? AND user_agent = ?`

	session, err := scanSession(s.queryRow(ctx, query, userID, userAgent))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// ListUserSessions returns all sessions of a user ordered by creation time
func (s *Storage) ListUserSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = ? ORDER BY created_at, id`
	return s.listSessions(ctx, query, userID)
}

// ListSessions returns every stored session
func (s *Storage) ListSessions(ctx context.Context) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at, id`
	return s.listSessions(ctx, query)
}

func (s *Storage) listSessions(ctx context.Context, query string, args ...any) ([]*models.Session, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return sessions, nil
}

// DeleteSession deletes session by ID
func (s *Storage) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.exec(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return affected(res, storage.ErrSessionNotFound)
}

// DeleteUserSessions deletes all sessions of a user
func (s *Storage) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	res, err := s.exec(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(n), nil
}

// DeleteExpiredSessions removes sessions that expired before now
func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := s.exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, dbTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(n), nil
}

func scanSession(row rowScanner) (*models.Session, error) {
	session := &models.Session{}
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.UserAgent,
		&session.IP,
		&session.RefreshTokenHash,
		&session.TokenDigest,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.ExpiresAt = session.ExpiresAt.UTC()
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	return session, nil
}
