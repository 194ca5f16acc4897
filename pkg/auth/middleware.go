package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fjod/traced_shop/pkg/httpx"
)

type contextKey struct{}

type UserContext struct {
	UserID    string
	Username  string
	SessionID string
	// Authorization is the raw header, forwarded on calls to other services.
	Authorization string
}

func ContextWithUser(ctx context.Context, u *UserContext) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

func UserFromContext(ctx context.Context) (*UserContext, bool) {
	u, ok := ctx.Value(contextKey{}).(*UserContext)
	return u, ok && u != nil
}

// Middleware requires a valid bearer token. Preflight requests pass through
// untouched.
func Middleware(issuer *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, err := BearerToken(header)
			if err != nil {
				httpx.RespondError(w, r, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}

			claims, err := issuer.Validate(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, ErrExpiredToken) {
					msg = err.Error()
				}
				httpx.RespondError(w, r, http.StatusUnauthorized, "unauthorized", msg)
				return
			}

			trace.SpanFromContext(r.Context()).SetAttributes(
				attribute.String("enduser.id", claims.UserID),
				attribute.String("session.id", claims.SessionID),
			)

			ctx := ContextWithUser(r.Context(), &UserContext{
				UserID:        claims.UserID,
				Username:      claims.Username,
				SessionID:     claims.SessionID,
				Authorization: header,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOwner rejects requests whose {param} path segment names a user other
// than the authenticated one. Use it on routes below the param.
func RequireOwner(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, r, http.StatusUnauthorized, "unauthorized", "missing user authentication")
				return
			}
			if chi.URLParam(r, param) != u.UserID {
				httpx.RespondError(w, r, http.StatusForbidden, "forbidden", "access to another user's resources is not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
