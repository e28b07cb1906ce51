package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

// ErrMismatch is returned when a secret does not match its hash.
var ErrMismatch = errors.New("hash mismatch")

// Hasher hashes passwords and refresh tokens with a fixed bcrypt cost.
type Hasher struct {
	cost int
}

// NewHasher creates a hasher. Costs outside bcrypt's range fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// HashPassword хеширует пароль через bcrypt
func (h *Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword проверяет пароль против сохраненного bcrypt хеша
func (h *Hasher) VerifyPassword(password, hash string) error {
	return compare(hash, []byte(password))
}

// HashToken хеширует refresh token.
// JWT длиннее 72 байт (предел bcrypt), поэтому хешируется SHA256 дайджест токена.
func (h *Hasher) HashToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(Digest(token)), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

// VerifyToken проверяет refresh token против bcrypt хеша из HashToken
func (h *Hasher) VerifyToken(token, hash string) error {
	return compare(hash, []byte(Digest(token)))
}

// Digest returns sha256(value) as lowercase hex.
// It is deterministic and safe to use in timer names and lookups.
func Digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func compare(hash string, secret []byte) error {
	if hash == "" {
		return fmt.Errorf("hash cannot be empty")
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), secret)
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	if err != nil {
		return fmt.Errorf("failed to compare hash: %w", err)
	}
	return nil
}
