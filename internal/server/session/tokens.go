package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/iudanet/questline/internal/models"
)

const issuer = "questline"

// ErrInvalidToken возвращается для любого токена, не прошедшего проверку
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims несет публичное представление пользователя в качестве subject
type AccessClaims struct {
	User models.UserPublic `json:"sub"`
	jwt.RegisteredClaims
}

// RefreshSubject идентифицирует владельца refresh токена. Token это случайный
// nonce, поэтому два refresh токена никогда не совпадают побайтно.
type RefreshSubject struct {
	UUID  string `json:"uuid"`
	Token string `json:"token"`
}

// RefreshClaims представляет claims refresh токена
type RefreshClaims struct {
	Sub RefreshSubject `json:"sub"`
	jwt.RegisteredClaims
}

// TokenPair представляет только что выпущенную пару access/refresh
type TokenPair struct {
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	AccessToken      string
	RefreshToken     string
}

// IssueTokenPair подписывает новые access и refresh токены пользователя
func (m *Manager) IssueTokenPair(user models.UserPublic) (TokenPair, error) {
	now := m.now()

	accessExp := jwt.NewNumericDate(now.Add(m.cfg.AccessTTL))
	access := AccessClaims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: accessExp,
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString(m.cfg.AccessSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshExp := jwt.NewNumericDate(now.Add(m.cfg.RefreshTTL))
	refresh := RefreshClaims{
		Sub: RefreshSubject{
			UUID:  user.UUID,
			Token: ulid.Make().String(),
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: refreshExp,
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(m.cfg.RefreshSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp.Time,
		RefreshExpiresAt: refreshExp.Time,
	}, nil
}

// ValidateAccessToken возвращает пользователя из валидного access токена.
// Токен валиден строго до своего exp.
func (m *Manager) ValidateAccessToken(token string) (models.UserPublic, error) {
	if token == "" {
		return models.UserPublic{}, ErrInvalidToken
	}

	claims := &AccessClaims{}
	if _, err := m.parser().ParseWithClaims(token, claims, m.keyFunc(m.cfg.AccessSecret)); err != nil {
		return models.UserPublic{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.User.UUID == "" {
		return models.UserPublic{}, ErrInvalidToken
	}

	return claims.User, nil
}

// parseRefresh проверяет подпись refresh токена и, если задан validate, его срок
func (m *Manager) parseRefresh(token string, validate bool) (*RefreshClaims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if validate {
		opts = append(opts, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &RefreshClaims{}
	if _, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, m.keyFunc(m.cfg.RefreshSecret)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Sub.UUID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (m *Manager) parser() *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
}

func (m *Manager) keyFunc(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}
}
