// Package auth provides JWT-based authentication for aspen-engine.
// It validates tokens issued by the identity provider using JWKS endpoints
// and resolves the token subject to a user with per-group roles.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aspen-bio/aspen-engine/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// UserContextKey is the context key for storing the resolved user.
	UserContextKey contextKey = "userContext"
)

// Claims represents the JWT claims structure from the identity provider.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.).
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// SetUserContext stores the resolved user in the context.
func SetUserContext(ctx context.Context, user *models.UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserContext retrieves the resolved user from the request context.
// Returns nil and false if not present.
func GetUserContext(ctx context.Context) (*models.UserContext, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.UserContext)
	return user, ok
}
