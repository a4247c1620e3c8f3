package infrastructure

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "leadpulse"
	ServiceVersion = "v1.0.0"
)

// OTelProviders holds the OpenTelemetry tracing providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	Tracer         trace.Tracer
	Logger         *slog.Logger
}

// InitializeOTel sets up tracing with a stdout exporter. Tracing is
// best-effort; a setup failure degrades to a no-op tracer rather than
// blocking startup.
func InitializeOTel(ctx context.Context, logger *slog.Logger) (*OTelProviders, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otel resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &OTelProviders{
		TracerProvider: tp,
		Tracer:         tp.Tracer(ServiceName),
		Logger:         logger,
	}, nil
}

// Shutdown flushes and stops the tracer provider
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	if p == nil || p.TracerProvider == nil {
		return nil
	}
	return p.TracerProvider.Shutdown(ctx)
}
