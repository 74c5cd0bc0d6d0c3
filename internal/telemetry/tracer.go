// Package telemetry wires OpenTelemetry tracing for the gateway, grounded
// on kadirpekel-hector's InitGlobalTracer pattern but exporting to stdout
// instead of OTLP, matching the stdout exporters the teacher's go.mod
// already declares.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls whether tracing is active. Disabled by default: the
// stdout exporter is meant for local debugging, not production scrape.
type Config struct {
	Enabled     bool
	ServiceName string
}

// Init installs the global TracerProvider. When disabled it installs a
// no-op provider so every Tracer() call elsewhere in the gateway stays
// cheap and unconditional. The returned shutdown func flushes and closes
// the exporter; call it during Gateway.Close.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns the named tracer off the current global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
