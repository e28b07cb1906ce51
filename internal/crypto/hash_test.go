package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_Password(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
		check    string
		wantErr  error
	}{
		{name: "matching password", password: "secret1", check: "secret1"},
		{name: "wrong password", password: "secret1", check: "secret2", wantErr: ErrMismatch},
		{name: "case sensitive", password: "Secret", check: "secret", wantErr: ErrMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.HashPassword(tt.password)
			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash)

			err = h.VerifyPassword(tt.check, hash)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHasher_HashPasswordEmpty(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.HashPassword("")
	assert.Error(t, err)
}

func TestHasher_TokenLongerThanBcryptLimit(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	base := strings.Repeat("a", 100)

	hash, err := h.HashToken(base + "-one")
	require.NoError(t, err)

	assert.NoError(t, h.VerifyToken(base+"-one", hash))
	// Разница после 72-го байта тоже должна учитываться
	assert.ErrorIs(t, h.VerifyToken(base+"-two", hash), ErrMismatch)
}

func TestHasher_VerifyEmptyHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	err := h.VerifyToken("token", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMismatch)
}

func TestNewHasher_CostFallback(t *testing.T) {
	assert.Equal(t, DefaultCost, NewHasher(0).cost)
	assert.Equal(t, DefaultCost, NewHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}

func TestDigest(t *testing.T) {
	d := Digest("token")

	assert.Len(t, d, 64)
	assert.Equal(t, d, Digest("token"))
	assert.NotEqual(t, d, Digest("token2"))
}
