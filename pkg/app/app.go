// Package app wires the ambient pieces every service starts with: config,
// logger, tracer provider, metrics and the base router.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/pkg/config"
	"github.com/fjod/traced_shop/pkg/httpx"
	"github.com/fjod/traced_shop/pkg/logger"
	"github.com/fjod/traced_shop/pkg/metrics"
	"github.com/fjod/traced_shop/pkg/server"
	"github.com/fjod/traced_shop/pkg/telemetry"
)

type App struct {
	Config  *config.Loader
	Base    config.Base
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Router  *chi.Mux

	tracing *telemetry.Provider
}

// New loads configuration and starts tracing. Callers register their
// service defaults in defaults before the base config is read.
func New(ctx context.Context, service, port string, defaults func(*config.Loader)) (*App, error) {
	cfg, err := config.NewLoader(service, port)
	if err != nil {
		return nil, err
	}
	if defaults != nil {
		defaults(cfg)
	}
	base := cfg.Base()

	log, err := logger.New(logger.Options{
		Service: base.ServiceName,
		Env:     base.Environment,
		Level:   base.LogLevel,
		File:    base.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    base.ServiceName,
		ServiceVersion: base.ServiceVersion,
		Environment:    base.Environment,
		Endpoint:       base.OTLPEndpoint,
		Protocol:       base.OTLPProtocol,
		SampleRatio:    base.SampleRatio,
		Disabled:       base.OTLPDisabled,
		Logger:         log,
	})
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	m := metrics.New(base.ServiceName)
	router := httpx.NewRouter(httpx.Options{
		Service: base.ServiceName,
		Logger:  log,
		Metrics: m,
		Timeout: base.RequestTimeout,
	})

	log.Info("service configured",
		zap.String("version", base.ServiceVersion),
		zap.String("environment", base.Environment),
		zap.String("otlp_endpoint", base.OTLPEndpoint),
		zap.Bool("otlp_disabled", base.OTLPDisabled),
	)

	return &App{
		Config:  cfg,
		Base:    base,
		Logger:  log,
		Metrics: m,
		Router:  router,
		tracing: tp,
	}, nil
}

// Run serves the router until ctx is cancelled or a termination signal
// arrives, then flushes spans and logs.
func (a *App) Run(ctx context.Context) error {
	return a.Serve(ctx, a.Router)
}

// Serve is Run with h in place of the router, for services that wrap the
// router in extra instrumentation.
func (a *App) Serve(ctx context.Context, h http.Handler) error {
	srv := server.New(a.Base.Port, h)
	runErr := server.Run(ctx, srv, a.Logger, a.Base.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Base.ShutdownTimeout)
	defer cancel()
	if err := a.tracing.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("failed to flush spans", zap.Error(err))
	}
	_ = a.Logger.Sync()

	return runErr
}
