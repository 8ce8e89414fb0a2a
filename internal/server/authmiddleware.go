package server

import (
	"context"
	"net/http"

	"github.com/tjfontaine/markdown-notes/internal/auth"
	"github.com/tjfontaine/markdown-notes/internal/domain"
)

type userContextKey struct{}

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// AuthMiddleware requires a valid bearer token and stores the resolved user
// in the request context.
func AuthMiddleware(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractBearerToken(r)
			if err != nil {
				AddError(r.Context(), err)
				unauthorized(w)
				return
			}

			user, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				AddError(r.Context(), err)
				unauthorized(w)
				return
			}

			AddLogField(r.Context(), "user_email", user.Email)
			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeAPIError(w, domain.ErrAuthentication("Could not validate credentials"))
}

// CurrentUser returns the authenticated user, or nil outside AuthMiddleware.
func CurrentUser(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(userContextKey{}).(*domain.User); ok {
		return u
	}
	return nil
}
