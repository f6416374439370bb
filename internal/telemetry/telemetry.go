// Package telemetry wires up the OpenTelemetry meter and tracer
// providers used across the store, worker, and HTTP layers. It
// defaults to stdout exporters, mirroring how the retrieved example
// pack demonstrates OpenTelemetry wiring (intelligencedev-manifold's
// internal/observability/otel.go, adapted here from OTLP exporters to
// stdout ones since chatvault has no collector dependency) without
// requiring any collector to be running.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricsdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(context.Context) error

// Init installs global tracer and meter providers backed by stdout
// exporters. enabled=false installs nothing, leaving OpenTelemetry's
// default no-op global providers in place, for CLI subcommands (search,
// stats) that should not print OTel JSON to stdout on every invocation.
func Init(ctx context.Context, serviceName string, enabled bool) (ShutdownFunc, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	traceExp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)

	metricExp, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	reader := metricsdk.NewPeriodicReader(metricExp, metricsdk.WithInterval(30*time.Second))
	mp := metricsdk.NewMeterProvider(
		metricsdk.WithReader(reader),
		metricsdk.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		var first error
		if err := mp.Shutdown(ctx); err != nil {
			first = err
		}
		if err := tp.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
		return first
	}, nil
}

// Meter returns the named meter from the globally installed provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Tracer returns the named tracer from the globally installed provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
