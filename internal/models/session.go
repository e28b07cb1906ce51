package models

import "time"

// Session is a persisted (user, device) pair tracking the current refresh token.
type Session struct {
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
	// RefreshTokenHash is the bcrypt hash of the refresh token digest.
	RefreshTokenHash string `json:"-"`
	// TokenDigest is sha256(refresh token) in hex, used to name the expiry timer.
	TokenDigest string `json:"-"`
}
