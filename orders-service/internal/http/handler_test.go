package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/orders-service/internal/carts"
	"github.com/fjod/traced_shop/orders-service/internal/domain"
	"github.com/fjod/traced_shop/orders-service/internal/repository"
	"github.com/fjod/traced_shop/orders-service/internal/service"
	"github.com/fjod/traced_shop/pkg/auth"
	"github.com/fjod/traced_shop/pkg/httpx"
	"github.com/fjod/traced_shop/pkg/svcclient"
	"github.com/fjod/traced_shop/pkg/telemetry"
	"github.com/fjod/traced_shop/pkg/telemetry/telemetrytest"
)

const secret = "test-secret"

// fakeCartService mimics cart-service for a single user.
type fakeCartService struct {
	mu      sync.Mutex
	body    string
	status  int
	cleared int
	headers http.Header
}

func (f *fakeCartService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers = r.Header.Clone()

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		_, _ = w.Write([]byte(f.body))
	case http.MethodDelete:
		f.cleared++
		f.body = `{"userId":"user-1","items":[]}`
		_, _ = w.Write([]byte(`{"message":"Cart cleared"}`))
	}
}

func (f *fakeCartService) set(body string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body, f.status = body, status
}

func (f *fakeCartService) snapshot() (int, http.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared, f.headers
}

const fullCart = `{"userId":"user-1","items":[
	{"productId":"1","productName":"Gaming Laptop","quantity":1,"price":1299.99},
	{"productId":"3","productName":"Headphones","quantity":2,"price":199.99}
]}`

type testEnv struct {
	router *chi.Mux
	carts  *fakeCartService
	issuer *auth.Issuer
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := &fakeCartService{body: fullCart}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	repo, err := repository.NewFileRepository(filepath.Join(t.TempDir(), "orders.json"))
	require.NoError(t, err)

	client := svcclient.New(svcclient.Config{
		Source:  "orders-service",
		Target:  "cart-service",
		BaseURL: srv.URL,
	})
	svc := service.NewOrderService(repo, carts.NewClient(client), nil, zap.NewNop())

	issuer := auth.NewIssuer(secret)
	token, err := issuer.Generate("user-1", "admin", "sess-1")
	require.NoError(t, err)

	r := httpx.NewRouter(httpx.Options{Service: "orders-service", Logger: zap.NewNop()})
	NewOrderHandler(svc, zap.NewNop()).Routes(r, issuer)

	return &testEnv{router: r, carts: fake, issuer: issuer, token: token}
}

func (e *testEnv) doAs(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return e.doAs(t, e.token, method, path, body)
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) domain.Order {
	t.Helper()
	var o domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	return o
}

func TestCheckout_CreatesOrder(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/orders/checkout/user-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	order := decodeOrder(t, rec)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, 1699.97, order.Total)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Gaming Laptop", order.Items[0].Name)

	cleared, _ := env.carts.snapshot()
	assert.Equal(t, 1, cleared)

	// the cart is empty now
	rec = env.do(t, http.MethodPost, "/api/orders/checkout/user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_PropagatesTraceAndAuthorization(t *testing.T) {
	sr := telemetrytest.Install(t)
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/orders/checkout/user-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	_, headers := env.carts.snapshot()
	assert.Equal(t, "Bearer "+env.token, headers.Get("Authorization"))
	assert.Equal(t, "orders-service", headers.Get("X-Source-Service"))

	remote := telemetry.Extract(t.Context(), headers)
	assert.Equal(t, rec.Header().Get(telemetry.TraceIDHeader), telemetry.TraceID(remote))

	names := telemetrytest.SpanNames(sr)
	assert.Contains(t, names, "checkout")
	assert.Contains(t, names, "GET cart-service /api/cart/user-1")
	assert.Contains(t, names, "DELETE cart-service /api/cart/user-1")
}

func TestCheckout_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   int
	}{
		{"empty cart", `{"userId":"user-1","items":[]}`, 0, http.StatusBadRequest},
		{"cart service error", "", http.StatusInternalServerError, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.carts.set(tt.body, tt.status)

			rec := env.do(t, http.MethodPost, "/api/orders/checkout/user-1", nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCheckout_BreakerOpenIsUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.carts.set("", http.StatusInternalServerError)

	var last int
	for i := 0; i < 10; i++ {
		last = env.do(t, http.MethodPost, "/api/orders/checkout/user-1", nil).Code
	}
	assert.Equal(t, http.StatusServiceUnavailable, last)
}

func TestCheckout_OtherUserIsForbidden(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/orders/checkout/user-2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.doAs(t, "", http.MethodPost, "/api/orders/checkout/user-1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListAndGetOrders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/orders/user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	created := decodeOrder(t, env.do(t, http.MethodPost, "/api/orders/checkout/user-1", nil))

	rec = env.do(t, http.MethodGet, "/api/orders/user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	rec = env.do(t, http.MethodGet, "/api/orders/user-1/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeOrder(t, rec).ID)

	rec = env.do(t, http.MethodGet, "/api/orders/user-1/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/orders/user-2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	created := decodeOrder(t, env.do(t, http.MethodPost, "/api/orders/checkout/user-1", nil))
	path := "/api/orders/" + created.ID + "/status"

	rec := env.do(t, http.MethodPut, path, UpdateStatusRequest{Status: "paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrderStatusPaid, decodeOrder(t, rec).Status)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"unknown status", UpdateStatusRequest{Status: "teleported"}, http.StatusBadRequest},
		{"missing status", map[string]string{}, http.StatusBadRequest},
		{"illegal transition", UpdateStatusRequest{Status: "pending"}, http.StatusConflict},
		{"same status", UpdateStatusRequest{Status: "paid"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPut, path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestUpdateStatus_OtherUsersOrderIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	created := decodeOrder(t, env.do(t, http.MethodPost, "/api/orders/checkout/user-1", nil))

	other, err := env.issuer.Generate("user-2", "guest", "sess-2")
	require.NoError(t, err)

	rec := env.doAs(t, other, http.MethodPut, "/api/orders/"+created.ID+"/status", UpdateStatusRequest{Status: "cancelled"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/orders/unknown/status", UpdateStatusRequest{Status: "paid"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
