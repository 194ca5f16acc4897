package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/pkg/logger"
	"github.com/fjod/traced_shop/pkg/metrics"
	"github.com/fjod/traced_shop/pkg/telemetry"
)

type Options struct {
	Service string
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Timeout bounds every request; zero disables it.
	Timeout time.Duration
}

// NewRouter returns a chi router with the common middleware stack plus the
// /api/health and /metrics endpoints. Order matters: the access log runs
// inside the server span so its entries carry trace ids, and the recoverer
// runs inside the access log so panics are logged as 500s.
func NewRouter(opts Options) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(opts.Service)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type", "X-Request-ID",
			"traceparent", "tracestate", "baggage",
		},
		ExposedHeaders: []string{telemetry.TraceIDHeader, middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(telemetry.Middleware(opts.Service))
	r.Use(opts.Metrics.Middleware)
	r.Use(logger.Middleware(opts.Logger))
	r.Use(middleware.Recoverer)
	if opts.Timeout > 0 {
		r.Use(middleware.Timeout(opts.Timeout))
	}

	r.Get("/api/health", Health(opts.Service))
	r.Handle("/metrics", opts.Metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		RespondError(w, r, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		RespondError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}

func Health(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		RespondJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": service,
		})
	}
}
