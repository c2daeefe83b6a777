// Package tracing installs the global OpenTelemetry tracer provider used for
// per-probe spans.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "probevisor"

// Options selects the span exporter. Exporter is one of none, stdout or otlp.
type Options struct {
	Exporter string
	Endpoint string // OTLP gRPC host:port
	Version  string
	Writer   io.Writer // stdout exporter destination; defaults to os.Stdout
}

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

// Init sets the global tracer provider. With the none exporter nothing is
// installed and spans are no-ops.
func Init(ctx context.Context, opts Options) (ShutdownFunc, error) {
	var exp sdktrace.SpanExporter
	var err error

	switch opts.Exporter {
	case "", "none":
		return func(context.Context) error { return nil }, nil
	case "stdout":
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case "otlp":
		exp, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(opts.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q (want none, stdout or otlp)", opts.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", opts.Exporter, err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", opts.Version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
