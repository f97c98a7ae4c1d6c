package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/wearagain/thriftmarket/internal/apperr"
	"github.com/wearagain/thriftmarket/internal/auth"
	"github.com/wearagain/thriftmarket/internal/users"
)

type ctxKey int

const identityKey ctxKey = iota

// Identity is the verified caller, placed in the request context by
// AuthMiddleware.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// UserChecker re-checks that the token subject still exists. Deleting a
// user revokes every token they hold.
type UserChecker interface {
	GetByID(ctx context.Context, id string) (*users.User, error)
}

type AuthMiddleware struct {
	Tokens TokenVerifier
	Users  UserChecker
}

// RequireAuth rejects requests without a valid bearer token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, r, fmt.Errorf("%w: missing Authorization header", apperr.ErrUnauthorized))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, r, fmt.Errorf("%w: malformed Authorization header", apperr.ErrUnauthorized))
			return
		}

		claims, err := m.Tokens.Verify(parts[1])
		if err != nil {
			writeError(w, r, err)
			return
		}

		u, err := m.Users.GetByID(r.Context(), claims.UserID())
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: user no longer exists", apperr.ErrUnauthorized))
			return
		}

		// Role comes from the DB, not the token, so a demotion takes
		// effect before the token expires.
		id := Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// RequireAdmin gates admin-wide endpoints. Must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, r, apperr.ErrUnauthorized)
			return
		}
		if id.Role != users.RoleAdmin {
			writeError(w, r, fmt.Errorf("%w: admin only", apperr.ErrForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}
