package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fieldlabs/profile-service/internal/config"
	"github.com/fieldlabs/profile-service/internal/platform/log"
)

// InitTracing installs the global tracer provider. The exporter is chosen by
// config: "stdout" for local runs, "otlp" for a collector, anything else
// leaves a noop provider so Tracer calls stay free.
func InitTracing(ctx context.Context, cfg *config.Config, logger *log.Logger) (func(), error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func() {}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("init %s trace exporter: %w", cfg.TraceExporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			semconv.ServiceNameKey.String("profile-service"),
		)),
	)
	otel.SetTracerProvider(tp)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", log.Err(err))
		}
	}, nil
}

func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
