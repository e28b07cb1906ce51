// Package session управляет парами access/refresh токенов и сессиями устройств.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/crypto"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/scheduler"
	"github.com/iudanet/questline/internal/server/storage"
)

// Причины отзыва, передаваемые в Recorder
const (
	ReasonLogout  = "logout"
	ReasonExpired = "expired"
	ReasonRevoked = "revoked"
)

// Config содержит параметры подписи токенов
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SecureCookies bool
}

// ClientInfo идентифицирует устройство, которому принадлежит сессия
type ClientInfo struct {
	UserAgent string
	IP        string
}

// Recorder получает события сессий, обычно это счетчики prometheus
type Recorder interface {
	TokensRotated()
	SessionRevoked(reason string)
}

type nopRecorder struct{}

func (nopRecorder) TokensRotated()        {}
func (nopRecorder) SessionRevoked(string) {}

// Manager выпускает, ротирует и отзывает пары токенов
type Manager struct {
	logger   *slog.Logger
	sessions storage.SessionStorage
	hasher   *crypto.Hasher
	sched    scheduler.Scheduler
	recorder Recorder
	now      func() time.Time
	cfg      Config
}

// Option настраивает Manager
type Option func(*Manager)

// WithClock подменяет time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRecorder передает события сессий в r
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// NewManager создает менеджер сессий
func NewManager(
	logger *slog.Logger,
	sessions storage.SessionStorage,
	hasher *crypto.Hasher,
	sched scheduler.Scheduler,
	cfg Config,
	opts ...Option,
) *Manager {
	m := &Manager{
		logger:   logger,
		sessions: sessions,
		hasher:   hasher,
		sched:    sched,
		recorder: nopRecorder{},
		now:      time.Now,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RotateTokens выпускает новую пару и сохраняет ее как сессию устройства клиента.
// Существующая сессия того же устройства перезаписывается, ее таймер истечения заменяется.
func (m *Manager) RotateTokens(ctx context.Context, user models.UserPublic, client ClientInfo) (TokenPair, error) {
	pair, err := m.IssueTokenPair(user)
	if err != nil {
		return TokenPair{}, apperr.Internal("couldn't issue tokens", err)
	}

	hash, err := m.hasher.HashToken(pair.RefreshToken)
	if err != nil {
		return TokenPair{}, apperr.Internal("couldn't hash refresh token", err)
	}
	digest := crypto.Digest(pair.RefreshToken)

	var previousDigest string
	prev, err := m.sessions.GetSessionByUserAgent(ctx, user.UUID, client.UserAgent)
	switch {
	case err == nil:
		previousDigest = prev.TokenDigest
	case !errors.Is(err, storage.ErrSessionNotFound):
		m.logger.WarnContext(ctx, "Failed to look up device session",
			slog.String("user_id", user.UUID),
			slog.Any("error", err),
		)
	}

	now := m.now()
	sess := &models.Session{
		ID:               ulid.Make().String(),
		UserID:           user.UUID,
		UserAgent:        client.UserAgent,
		IP:               client.IP,
		RefreshTokenHash: hash,
		TokenDigest:      digest,
		ExpiresAt:        pair.RefreshExpiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.sessions.UpsertSession(ctx, sess); err != nil {
		m.logger.ErrorContext(ctx, "Failed to save session",
			slog.String("user_id", user.UUID),
			slog.Any("error", err),
		)
		return TokenPair{}, apperr.Unavailable("couldn't save session", err)
	}

	if previousDigest != "" && previousDigest != digest {
		m.sched.Cancel(scheduler.TokenExpireKey(previousDigest))
	}

	refreshToken := pair.RefreshToken
	m.sched.Schedule(scheduler.TokenExpireKey(digest), pair.RefreshExpiresAt.Sub(now), func(ctx context.Context) {
		m.logger.InfoContext(ctx, "Refresh token expired", slog.String("session_id", sess.ID))
		m.revoke(ctx, refreshToken, ReasonExpired)
	})

	m.recorder.TokensRotated()
	m.logger.InfoContext(ctx, "Tokens rotated",
		slog.String("user_id", user.UUID),
		slog.String("session_id", sess.ID),
		slog.String("ip", client.IP),
	)

	return pair, nil
}

// ResolveRefreshOwner проверяет refresh токен и находит его сессию. Токен
// сравнивается со всеми сессиями владельца, а не только с сессией предъявившего
// его устройства.
func (m *Manager) ResolveRefreshOwner(ctx context.Context, token string) (*models.Session, error) {
	claims, err := m.parseRefresh(token, true)
	if err != nil {
		return nil, err
	}

	sess, err := m.findSession(ctx, claims.Sub.UUID, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidToken
	}
	return sess, nil
}

// Revoke удаляет сессию refresh токена и отменяет ее таймер истечения.
// Ошибок не возвращает: неизвестные, просроченные и битые токены игнорируются.
func (m *Manager) Revoke(ctx context.Context, token string) {
	m.revoke(ctx, token, ReasonLogout)
}

func (m *Manager) revoke(ctx context.Context, token, reason string) {
	claims, err := m.parseRefresh(token, false)
	if err != nil {
		m.logger.DebugContext(ctx, "Revoke skipped: unreadable token", slog.Any("error", err))
		return
	}

	sess, err := m.findSession(ctx, claims.Sub.UUID, token)
	if err != nil {
		m.logger.WarnContext(ctx, "Revoke lookup failed", slog.String("user_id", claims.Sub.UUID), slog.Any("error", err))
		return
	}
	if sess == nil {
		return
	}

	m.deleteSession(ctx, sess, reason)
}

// findSession возвращает сессию, хеш которой совпал с токеном, или nil
func (m *Manager) findSession(ctx context.Context, userID, token string) (*models.Session, error) {
	sessions, err := m.sessions.ListUserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, s := range sessions {
		if m.hasher.VerifyToken(token, s.RefreshTokenHash) == nil {
			return s, nil
		}
	}
	return nil, nil
}

func (m *Manager) deleteSession(ctx context.Context, sess *models.Session, reason string) {
	m.sched.Cancel(scheduler.TokenExpireKey(sess.TokenDigest))

	if err := m.sessions.DeleteSession(ctx, sess.ID); err != nil {
		if !errors.Is(err, storage.ErrSessionNotFound) {
			m.logger.WarnContext(ctx, "Failed to delete session",
				slog.String("session_id", sess.ID),
				slog.Any("error", err),
			)
		}
		return
	}

	m.recorder.SessionRevoked(reason)
	m.logger.InfoContext(ctx, "Session revoked",
		slog.String("session_id", sess.ID),
		slog.String("user_id", sess.UserID),
		slog.String("reason", reason),
	)
}

// Sessions возвращает устройства, с которых вошел пользователь
func (m *Manager) Sessions(ctx context.Context, userID string) ([]*models.Session, error) {
	sessions, err := m.sessions.ListUserSessions(ctx, userID)
	if err != nil {
		return nil, apperr.Unavailable("couldn't list sessions", err)
	}
	return sessions, nil
}

// RevokeSession удаляет одну сессию пользователя по id
func (m *Manager) RevokeSession(ctx context.Context, userID, sessionID string) error {
	sess, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return apperr.Validation("session with id %q doesn't exist", sessionID)
		}
		return apperr.Unavailable("couldn't get session", err)
	}
	if sess.UserID != userID {
		return apperr.Validation("session with id %q doesn't exist", sessionID)
	}

	m.deleteSession(ctx, sess, ReasonRevoked)
	return nil
}

// RevokeAll удаляет все сессии пользователя
func (m *Manager) RevokeAll(ctx context.Context, userID string) error {
	sessions, err := m.sessions.ListUserSessions(ctx, userID)
	if err != nil {
		return apperr.Unavailable("couldn't list sessions", err)
	}
	for _, s := range sessions {
		m.sched.Cancel(scheduler.TokenExpireKey(s.TokenDigest))
	}

	n, err := m.sessions.DeleteUserSessions(ctx, userID)
	if err != nil {
		return apperr.Unavailable("couldn't delete sessions", err)
	}
	for range n {
		m.recorder.SessionRevoked(ReasonRevoked)
	}

	m.logger.InfoContext(ctx, "All sessions revoked", slog.String("user_id", userID), slog.Int("count", n))
	return nil
}

// Rearm удаляет сессии, истекшие, пока процесс не работал, и планирует
// истечение остальных. Вызывается один раз при старте.
func (m *Manager) Rearm(ctx context.Context) error {
	now := m.now()

	expired, err := m.sessions.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return err
	}

	sessions, err := m.sessions.ListSessions(ctx)
	if err != nil {
		return err
	}

	for _, s := range sessions {
		sessionID, digest := s.ID, s.TokenDigest
		m.sched.Schedule(scheduler.TokenExpireKey(digest), s.ExpiresAt.Sub(now), func(ctx context.Context) {
			m.expireSession(ctx, sessionID, digest)
		})
	}

	m.logger.InfoContext(ctx, "Session timers rearmed",
		slog.Int("expired", expired),
		slog.Int("scheduled", len(sessions)),
	)
	return nil
}

// expireSession удаляет сессию, только если ее токен не сменился после рестарта
func (m *Manager) expireSession(ctx context.Context, sessionID, digest string) {
	sess, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, storage.ErrSessionNotFound) {
			m.logger.WarnContext(ctx, "Expire lookup failed", slog.String("session_id", sessionID), slog.Any("error", err))
		}
		return
	}
	if sess.TokenDigest != digest {
		return
	}

	m.deleteSession(ctx, sess, ReasonExpired)
}
