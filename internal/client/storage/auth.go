package storage

import (
	"context"
	"time"
)

// AuthStorage хранит состояние сессии клиента между запусками
type AuthStorage interface {
	// SaveAuth перезаписывает сохраненную сессию
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth возвращает ErrAuthNotFound, если клиент не входил в систему
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes stored authentication data (logout)
	DeleteAuth(ctx context.Context) error

	// IsAuthenticated reports whether a session exists and its refresh token is still alive
	IsAuthenticated(ctx context.Context) (bool, error)
}

// AuthData is the locally persisted session: the access token from the
// Authorization header and the refresh token from the Refresh-Token cookie.
type AuthData struct {
	Login            string `json:"login"`
	UserID           string `json:"user_id"`
	ServerURL        string `json:"server_url"`
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

// RefreshAlive reports whether the refresh token can still rotate the session at now
func (a *AuthData) RefreshAlive(now time.Time) bool {
	return a.RefreshToken != "" && now.Unix() < a.RefreshExpiresAt
}
