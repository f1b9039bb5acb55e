// package telemetry configures OpenTelemetry tracing
package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wrapped/internal/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// Init installs a tracer provider exporting spans over OTLP.
//
// Tracing is skipped when cfg.Enabled is false or OTEL_SDK_DISABLED=true. Exporter errors are logged
// and tracing stays disabled, so the app still starts without a collector.
func Init(ctx context.Context, cfg shared.TelemetryConfig, logger *log.Logger) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if !cfg.Enabled || os.Getenv("OTEL_SDK_DISABLED") == "true" {
		logger.Debug("tracing disabled")
		return noop, nil
	}

	name := cfg.ServiceName
	if name == "" {
		name = "wrapped"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(name)),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		logger.Error("tracing init failed", "error", err)
		return noop, nil
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(Sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing configured", "protocol", protocolOf(cfg), "endpoint", cfg.Endpoint, "sample_ratio", cfg.SampleRatio)
	return tp.Shutdown, nil
}

func protocolOf(cfg shared.TelemetryConfig) string {
	if cfg.Protocol == "" {
		return ProtocolGRPC
	}
	return strings.ToLower(cfg.Protocol)
}

func newExporter(ctx context.Context, cfg shared.TelemetryConfig) (*otlptrace.Exporter, error) {
	switch protocolOf(cfg) {
	case ProtocolGRPC:
		var opts []otlptracegrpc.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case ProtocolHTTP:
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("%w: unsupported OTLP protocol %q", shared.ErrInvalidConfig, cfg.Protocol)
	}
}

// Sampler returns a parent based sampler that samples ratio of new traces.
// A ratio of 0 or less samples no new traces and 1 or more samples all of them.
func Sampler(ratio float64) trace.Sampler {
	switch {
	case ratio <= 0:
		return trace.ParentBased(trace.NeverSample())
	case ratio >= 1:
		return trace.ParentBased(trace.AlwaysSample())
	default:
		return trace.ParentBased(trace.TraceIDRatioBased(ratio))
	}
}
