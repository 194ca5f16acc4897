// Package telemetry sets up OpenTelemetry tracing for a service: the OTLP
// exporter towards Tempo (through Alloy), the W3C trace context propagator
// and helpers to carry the context across HTTP and message boundaries.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fjod/traced_shop"

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is host:port of the OTLP receiver, or a base URL such as
	// http://alloy:4318 as OTEL_EXPORTER_OTLP_ENDPOINT is usually written.
	Endpoint string
	// Protocol is "http" (port 4318) or "grpc" (port 4317).
	Protocol    string
	SampleRatio float64
	// Disabled keeps span ids and propagation working but exports nothing.
	Disabled bool
	Logger   *zap.Logger
}

type Provider struct {
	tp   *sdktrace.TracerProvider
	name string
}

func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("telemetry: service name is required")
	}

	otel.SetTextMapPropagator(NewPropagator())
	if cfg.Logger != nil {
		log := cfg.Logger
		otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
			log.Warn("opentelemetry error", zap.Error(err))
		}))
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg)),
		sdktrace.WithRawSpanLimits(sdktrace.SpanLimits{
			AttributeValueLengthLimit:   -1,
			AttributeCountLimit:         128,
			EventCountLimit:             128,
			LinkCountLimit:              128,
			AttributePerEventCountLimit: 32,
			AttributePerLinkCountLimit:  32,
		}),
	}

	if !cfg.Disabled {
		exp, err := newExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, name: cfg.ServiceName}, nil
}

// NewPropagator returns the composite W3C TraceContext + Baggage propagator.
func NewPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer(p.name)
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	endpoint := cfg.Endpoint
	switch strings.ToLower(cfg.Protocol) {
	case "grpc":
		if endpoint == "" {
			endpoint = "tempo:4317"
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure()}
		if strings.Contains(endpoint, "://") {
			opts = []otlptracegrpc.Option{otlptracegrpc.WithEndpointURL(endpoint)}
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	case "", "http", "http/protobuf":
		if endpoint == "" {
			endpoint = "tempo:4318"
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure()}
		if strings.Contains(endpoint, "://") {
			traces, err := tracesURL(endpoint)
			if err != nil {
				return nil, err
			}
			opts = []otlptracehttp.Option{otlptracehttp.WithEndpointURL(traces)}
		}
		return otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", cfg.Protocol)
	}
}

// tracesURL appends the signal path to a base OTLP/HTTP endpoint URL.
func tracesURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse otlp endpoint %q: %w", endpoint, err)
	}
	if !strings.HasSuffix(u.Path, "/v1/traces") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/traces"
	}
	return u.String(), nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	version := cfg.ServiceVersion
	if version == "" {
		version = "1.0.0"
	}
	return resource.New(ctx,
		resource.WithHost(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
			semconv.ServiceInstanceID(instanceID()),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
}

func instanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return uuid.NewString()
}

func newSampler(cfg Config) sdktrace.Sampler {
	switch strings.ToLower(cfg.Environment) {
	case "", "development", "dev", "local":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
