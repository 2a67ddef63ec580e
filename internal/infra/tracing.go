package infra

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.uber.org/fx"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/pkg/bininfo"
	"github.com/clovid/prisma-sub000/internal/pkg/observability"
)

// TracerProvider installs the global tracer provider. It returns nil when tracing is disabled,
// leaving otel's no-op provider in place.
func TracerProvider(lc fx.Lifecycle, conf *appconfig.Config) (*tracesdk.TracerProvider, error) {
	if !conf.TracingEnabled {
		return nil, nil
	}

	opts := []tracesdk.TracerProviderOption{
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(conf.TracingSampleRate))),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(observability.ServiceName),
			semconv.ServiceVersionKey.String(bininfo.Version),
			attribute.Bool("dev", conf.DevMode),
		)),
	}
	for _, name := range conf.TracingExporters {
		exporter, err := newExporter(name)
		if err != nil {
			return nil, errors.Wrapf(err, "tracing exporter %q", name)
		}
		opts = append(opts, tracesdk.WithBatcher(exporter))
	}

	tp := tracesdk.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	log.Info().Strs("exporters", conf.TracingExporters).Float64("sampleRate", conf.TracingSampleRate).Msg("tracing enabled")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp, nil
}

func newExporter(name string) (tracesdk.SpanExporter, error) {
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		return otlptracegrpc.New(context.Background())
	case "jaeger":
		return jaeger.New(jaeger.WithCollectorEndpoint())
	}
	return nil, errors.New("unknown exporter")
}
