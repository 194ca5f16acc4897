package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/auth-service/internal/repository"
	"github.com/fjod/traced_shop/auth-service/internal/service"
	"github.com/fjod/traced_shop/auth-service/internal/session"
	"github.com/fjod/traced_shop/pkg/auth"
	"github.com/fjod/traced_shop/pkg/httpx"
)

func newTestRouter(t *testing.T, store session.Store) *chi.Mux {
	t.Helper()
	users, err := repository.NewFileUserRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	issuer := auth.NewIssuer("test-secret")
	svc := service.NewAuthService(users, store, issuer, zap.NewNop())

	r := httpx.NewRouter(httpx.Options{Service: "auth-service", Logger: zap.NewNop()})
	NewAuthHandler(svc, zap.NewNop()).Routes(r, issuer)
	return r
}

func do(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, r http.Handler) service.LoginResult {
	t.Helper()
	rec := do(r, http.MethodPost, "/api/auth/login", "", `{"username":"admin","password":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res service.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestLoginMeLogout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	for name, store := range map[string]session.Store{
		"memory": session.NewMemoryStore(),
		"redis":  session.NewRedisStore(client),
	} {
		t.Run(name, func(t *testing.T) {
			r := newTestRouter(t, store)
			res := login(t, r)
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, "admin", res.Username)

			rec := do(r, http.MethodGet, "/api/auth/me", res.Token, "")
			require.Equal(t, http.StatusOK, rec.Code)
			var me MeResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
			assert.Equal(t, MeResponse{UserID: res.UserID, Username: "admin", SessionID: res.SessionID}, me)

			rec = do(r, http.MethodPost, "/api/auth/logout", res.Token, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"message":"Logged out"}`, rec.Body.String())

			// the token is still signed but its session is gone
			rec = do(r, http.MethodGet, "/api/auth/me", res.Token, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestLogin_Errors(t *testing.T) {
	r := newTestRouter(t, session.NewMemoryStore())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"username":"bob","password":"admin"}`, http.StatusUnauthorized},
		{"missing password", `{"username":"admin"}`, http.StatusBadRequest},
		{"malformed", `{"username":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, http.MethodPost, "/api/auth/login", "", tt.body)
			assert.Equal(t, tt.want, rec.Code)

			var body httpx.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	r := newTestRouter(t, session.NewMemoryStore())

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/auth/me", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/auth/logout", "garbage", "").Code)
}
