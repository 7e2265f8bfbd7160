package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stylevault/backend/internal/db"
	apperrors "github.com/stylevault/backend/internal/errors"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// UserFromContext returns the authenticated user placed in the request
// context by RequireToken. The boolean is false on unauthenticated
// requests.
func UserFromContext(ctx context.Context) (*db.User, bool) {
	user, ok := ctx.Value(userContextKey).(*db.User)
	return user, ok
}

// WithUser returns a context carrying the authenticated user. Exported
// for tests and the websocket upgrade path.
func WithUser(ctx context.Context, user *db.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// RequireToken gates a handler behind a bearer token of the given
// kind. The resolved user is stored in the request context. Every
// authentication failure renders the same 401 body so callers cannot
// probe which check failed.
func (s *Service) RequireToken(kind TokenKind, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			apperrors.WriteError(w, apperrors.GetRequestID(r.Context()), apperrors.InvalidToken())
			return
		}

		user, err := s.Authenticate(r.Context(), token, kind)
		if err != nil {
			apperrors.WriteError(w, apperrors.GetRequestID(r.Context()), authError(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAccess is RequireToken specialized to access tokens, the
// common case for API routes.
func (s *Service) RequireAccess(next http.Handler) http.Handler {
	return s.RequireToken(TokenAccess, next)
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// authError maps service-level authentication failures onto HTTP
// errors. Everything except an internal failure collapses to the
// uniform 401.
func authError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrMalformedClaims),
		errors.Is(err, ErrWrongTokenType),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrUserInactive):
		return apperrors.InvalidToken()
	default:
		return apperrors.InternalError("authentication failed")
	}
}
