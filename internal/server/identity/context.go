// Package identity carries the authenticated caller through a request context.
package identity

import (
	"context"

	"github.com/iudanet/questline/internal/models"
)

type identityContextKey struct{}
type refreshTokenContextKey struct{}

// WithIdentity attaches the authenticated caller to the context.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// FromContext extracts the authenticated caller from the context.
func FromContext(ctx context.Context) (models.Identity, bool) {
	if ctx == nil {
		return models.Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*models.Identity)
	if !ok || v == nil {
		return models.Identity{}, false
	}
	return *v, true
}

// WithRefreshToken stores the refresh token in force for this request.
// After a rotation it is the new token, not the one the client sent.
func WithRefreshToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, refreshTokenContextKey{}, token)
}

// RefreshTokenFromContext returns the refresh token if it was previously attached.
func RefreshTokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(refreshTokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
