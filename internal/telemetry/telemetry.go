// Package telemetry configures OpenTelemetry tracing for the gateway.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"recruit-gateway/internal/config"
)

// TracerName identifies spans created by the gateway.
const TracerName = "recruit-gateway"

const otlpEndpointEnvKey = "OTEL_EXPORTER_OTLP_ENDPOINT"

// Provider owns the tracer provider installed by New.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// New installs the W3C trace-context propagator so inbound traceparent
// headers reach the upstream, and, when tracing is enabled, a tracer
// provider exporting spans over OTLP/gRPC.
func New(ctx context.Context, cfg config.TracingConfig, version string, logger *slog.Logger) (*Provider, error) {
	logger = logger.With("component", "telemetry")

	otel.SetTextMapPropagator(propagation.TraceContext{})
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Warn("opentelemetry error", "err", err)
	}))

	if !cfg.Enabled {
		return &Provider{}, nil
	}

	endpoint := cfg.Endpoint
	if ep := os.Getenv(otlpEndpointEnvKey); ep != "" {
		endpoint = ep
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", TracerName),
		attribute.String("service.version", version),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Ratio()))),
	)
	otel.SetTracerProvider(tp)

	logger.Info("exporting traces", "endpoint", endpoint, "sample_ratio", cfg.Ratio())
	return &Provider{tp: tp}, nil
}

// Shutdown flushes pending spans. It is a no-op when tracing is disabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
