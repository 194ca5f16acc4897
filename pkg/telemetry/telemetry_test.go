package telemetry_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fjod/traced_shop/pkg/telemetry"
	"github.com/fjod/traced_shop/pkg/telemetry/telemetrytest"
)

const parentTraceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func TestMiddleware_ContinuesInboundTrace(t *testing.T) {
	sr := telemetrytest.Install(t)

	var seen trace.SpanContext
	r := chi.NewRouter()
	r.Use(telemetry.Middleware("cart-service"))
	r.Get("/api/cart/{userId}", func(w http.ResponseWriter, r *http.Request) {
		seen = trace.SpanContextFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/cart/u1", nil)
	req.Header.Set("traceparent", parentTraceparent)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", seen.TraceID().String())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec.Header().Get(telemetry.TraceIDHeader))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/cart/{userId}", spans[0].Name())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
}

func TestMiddleware_StartsNewTraceWithoutHeader(t *testing.T) {
	sr := telemetrytest.Install(t)

	r := chi.NewRouter()
	r.Use(telemetry.Middleware("product-service"))
	r.Get("/api/products", func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	require.Len(t, sr.Ended(), 1)
	span := sr.Ended()[0]
	assert.False(t, span.Parent().IsValid())
	assert.Equal(t, span.SpanContext().TraceID().String(), rec.Header().Get(telemetry.TraceIDHeader))
}

func TestMiddleware_SkipsHealthAndMetrics(t *testing.T) {
	sr := telemetrytest.Install(t)

	r := chi.NewRouter()
	r.Use(telemetry.Middleware("order-service"))
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Empty(t, sr.Ended())
}

func TestInjectExtract_RoundTrip(t *testing.T) {
	telemetrytest.Install(t)

	ctx, span := telemetry.StartSpan(context.Background(), "outbound")
	defer span.End()

	h := http.Header{}
	telemetry.Inject(ctx, h)
	require.NotEmpty(t, h.Get("traceparent"))

	got := trace.SpanContextFromContext(telemetry.Extract(context.Background(), h))
	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())
	assert.Equal(t, span.SpanContext().SpanID(), got.SpanID())
	assert.True(t, got.IsRemote())
	assert.Equal(t, span.SpanContext().TraceID().String(), telemetry.TraceID(ctx))
}

func TestRecordError(t *testing.T) {
	sr := telemetrytest.Install(t)

	_, span := telemetry.StartSpan(context.Background(), "failing")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(span, errors.New("boom"))
	span.End()

	require.Len(t, sr.Ended(), 1)
	got := sr.Ended()[0]
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "boom", got.Status().Description)
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "exception", got.Events()[0].Name)
}

func TestInit_DisabledStillCreatesSpans(t *testing.T) {
	p, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "todo-service",
		Disabled:    true,
	})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	_, span := p.Tracer().Start(context.Background(), "work")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
}

func TestInit_RejectsUnknownProtocol(t *testing.T) {
	_, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "todo-service",
		Protocol:    "carrier-pigeon",
	})
	assert.Error(t, err)
}

func TestInit_RequiresServiceName(t *testing.T) {
	_, err := telemetry.Init(context.Background(), telemetry.Config{Disabled: true})
	assert.Error(t, err)
}

func TestInit_ExportsToEndpointURL(t *testing.T) {
	var hits atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/traces" {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	for _, endpoint := range []string{strings.TrimPrefix(collector.URL, "http://"), collector.URL} {
		t.Run(endpoint, func(t *testing.T) {
			before := hits.Load()
			p, err := telemetry.Init(context.Background(), telemetry.Config{
				ServiceName: "todo-service",
				Endpoint:    endpoint,
				Protocol:    "http",
			})
			require.NoError(t, err)

			_, span := p.Tracer().Start(context.Background(), "work")
			span.End()
			require.NoError(t, p.Shutdown(context.Background()))
			assert.Greater(t, hits.Load(), before)
		})
	}
}
