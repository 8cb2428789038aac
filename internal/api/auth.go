package api

import (
	"context"
	"net/http"
	"strings"

	"bujo/internal/model"
	"bujo/internal/repository"
)

// Authenticator resolves a bearer token to a user. Session management
// itself lives outside this package.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// TokenAuthenticator resolves API tokens against the user table.
type TokenAuthenticator struct {
	users *repository.UserRepository
}

func NewTokenAuthenticator(users *repository.UserRepository) *TokenAuthenticator {
	return &TokenAuthenticator{users: users}
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (*model.User, error) {
	return a.users.FindByAPIToken(ctx, token)
}

type userHandler func(w http.ResponseWriter, r *http.Request, user *model.User)

// withUser authenticates the request and passes the resolved user to the
// handler. Missing or invalid credentials answer 401.
func (s *Server) withUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			unauthorized(w)
			return
		}
		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil || user == nil {
			unauthorized(w)
			return
		}
		h(w, r, user)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
