// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/canonical/task-service/internal/logging"
)

var _ TracingInterface = (*Tracer)(nil)

type Tracer struct {
	tracer trace.Tracer

	logger logging.LoggerInterface
}

func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName, opts...)
}

func NewTracer(config *Config) *Tracer {
	t := new(Tracer)

	t.logger = config.Logger

	if !config.Enabled {
		t.tracer = noop.NewTracerProvider().Tracer("task-service")
		return t
	}

	exporters := make([]sdktrace.SpanExporter, 0)

	if config.OtelGRPCEndpoint != "" {
		grpcExporter, err := newGRPCExporter(context.Background(), config.OtelGRPCEndpoint)
		if err != nil {
			t.logger.Errorf("unable to create otel grpc exporter: %v", err)
		} else {
			exporters = append(exporters, grpcExporter)
		}
	}

	// Fall back to the http endpoint only if grpc wasn't set up.
	if config.OtelHTTPEndpoint != "" && len(exporters) == 0 {
		httpExporter, err := newHTTPExporter(context.Background(), config.OtelHTTPEndpoint)
		if err != nil {
			t.logger.Errorf("unable to create otel http exporter: %v", err)
		} else {
			exporters = append(exporters, httpExporter)
		}
	}

	if len(exporters) == 0 {
		stdoutExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			t.logger.Errorf("unable to create stdout trace exporter: %v", err)
			t.tracer = noop.NewTracerProvider().Tracer("task-service")
			return t
		}

		exporters = append(exporters, stdoutExporter)
	}

	opts := make([]sdktrace.TracerProviderOption, 0, len(exporters))
	for _, exporter := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	t.tracer = tp.Tracer("task-service")

	return t
}

func newGRPCExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	return otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
}

func newHTTPExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	return otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
}
