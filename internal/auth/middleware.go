package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zaymazone/marketplace/internal/domain"
)

type contextKey struct{}

// UserLoader resolves the subject of a verified token.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type Middleware struct {
	tokens *Tokens
	users  UserLoader
	logger *slog.Logger
}

func NewMiddleware(tokens *Tokens, users UserLoader, logger *slog.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(contextKey{}).(*domain.User)
	return user, ok && user != nil
}

// Authenticate rejects requests without a valid bearer token and stores the
// token's user in the request context.
func (m *Middleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			m.writeError(w, http.StatusUnauthorized, "not authorized, no token")
			return
		}

		claims, err := m.tokens.Parse(raw)
		if err != nil {
			m.logger.Info("rejected bearer token", "error", err)
			m.writeError(w, http.StatusUnauthorized, "not authorized, token failed")
			return
		}

		user, err := m.users.GetByID(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				m.writeError(w, http.StatusUnauthorized, "not authorized, user not found")
				return
			}
			m.logger.Error("failed to load token subject", "error", err, "user_id", claims.Subject)
			m.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// Authorize authenticates the request and then requires one of roles.
func (m *Middleware) Authorize(next http.HandlerFunc, roles ...domain.Role) http.HandlerFunc {
	return m.Authenticate(func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		if !HasRole(user, roles...) {
			m.writeError(w, http.StatusForbidden, "not authorized, insufficient permissions")
			return
		}
		next(w, r)
	})
}

func HasRole(user *domain.User, roles ...domain.Role) bool {
	if user == nil {
		return false
	}
	for _, role := range roles {
		if user.Role == role {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (m *Middleware) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		m.logger.Error("failed to encode error response", "error", err)
	}
}
