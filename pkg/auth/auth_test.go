package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateValidate_RoundTrip(t *testing.T) {
	issuer := NewIssuer("secret")

	token, err := issuer.Generate("user-1", "admin", "sess-1")
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt.Time, 5*time.Second)
}

func TestValidate_Errors(t *testing.T) {
	issuer := NewIssuer("secret")
	token, err := issuer.Generate("user-1", "admin", "sess-1")
	require.NoError(t, err)

	_, err = issuer.Validate("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = NewIssuer("other").Validate(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = issuer.Validate("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewIssuer("secret")
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old, err := expired.Generate("user-1", "admin", "sess-1")
	require.NoError(t, err)
	_, err = issuer.Validate(old)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = BearerToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = BearerToken("Basic abc")
	assert.ErrorIs(t, err, ErrMalformedHeader)

	_, err = BearerToken("Bearer ")
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func newTestRouter(issuer *Issuer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Middleware(issuer))
	r.Route("/api/cart/{userId}", func(r chi.Router) {
		r.Use(RequireOwner("userId"))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			u, _ := UserFromContext(r.Context())
			_, _ = w.Write([]byte(u.Username + "|" + u.Authorization))
		})
	})
	r.Options("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func TestMiddleware(t *testing.T) {
	issuer := NewIssuer("secret")
	token, err := issuer.Generate("user-1", "admin", "sess-1")
	require.NoError(t, err)
	r := newTestRouter(issuer)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"valid owner", http.MethodGet, "/api/cart/user-1", "Bearer " + token, http.StatusOK},
		{"other user", http.MethodGet, "/api/cart/user-2", "Bearer " + token, http.StatusForbidden},
		{"missing header", http.MethodGet, "/api/cart/user-1", "", http.StatusUnauthorized},
		{"bad scheme", http.MethodGet, "/api/cart/user-1", "Token " + token, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/cart/user-1", "Bearer garbage", http.StatusUnauthorized},
		{"preflight", http.MethodOptions, "/api/ping", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMiddleware_ForwardsAuthorizationHeader(t *testing.T) {
	issuer := NewIssuer("secret")
	token, err := issuer.Generate("user-1", "admin", "sess-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/cart/user-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newTestRouter(issuer).ServeHTTP(rec, req)

	assert.Equal(t, "admin|Bearer "+token, rec.Body.String())
}
