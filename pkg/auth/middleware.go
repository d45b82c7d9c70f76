package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/models"
)

// UserResolver maps a validated token subject to the user's authorization
// view (system admin flag plus per-group roles). Implemented by the user
// service; declared here so auth does not import services.
type UserResolver interface {
	ResolveUserContext(ctx context.Context, subject string) (*models.UserContext, error)
}

// Middleware provides HTTP authentication middleware.
// It is thin and delegates authentication logic to AuthService.
type Middleware struct {
	authService AuthService
	resolver    UserResolver
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(authService AuthService, resolver UserResolver, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		resolver:    resolver,
		logger:      logger,
	}
}

// RequireAuth validates the JWT and resolves the subject to a user.
// Sets claims and user context in the request context for downstream
// handlers. Runs AFTER the database scope middleware, which the resolver
// needs to look up roles.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.unauthorized(w, "Authentication required")
			return
		}

		user, err := m.resolver.ResolveUserContext(r.Context(), claims.Subject)
		if err != nil {
			m.logger.Warn("Failed to resolve user for token subject",
				zap.String("subject", claims.Subject),
				zap.Error(err))
			m.unauthorized(w, "Unknown user")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		ctx = SetUserContext(ctx, user)
		next(w, r.WithContext(ctx))
	}
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
