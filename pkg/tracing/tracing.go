// Package tracing wires process-wide OpenTelemetry tracing for the
// memory engine.
package tracing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config selects and tunes the span exporter.
type Config struct {
	Enabled    bool              `mapstructure:"enabled"`
	Exporter   string            `mapstructure:"exporter"` // "otlp" or "stdout"
	Endpoint   string            `mapstructure:"endpoint"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	Sampler    string            `mapstructure:"sampler"`
	SampleRate float64           `mapstructure:"sample_rate"`
	Headers    map[string]string `mapstructure:"headers"`
}

// ShutdownFunc flushes and releases tracing resources.
type ShutdownFunc func(ctx context.Context) error

// quietExporter keeps exporter outages out of the request path: export
// failures are logged and reported as success upstream.
type quietExporter struct {
	exporter sdktrace.SpanExporter
	kind     string
	endpoint string
	log      *slog.Logger
}

func (e *quietExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := e.exporter.ExportSpans(ctx, spans); err != nil {
		e.log.Warn("span export failed",
			"exporter", e.kind,
			"endpoint", e.endpoint,
			"span_count", len(spans),
			"error", err,
		)
	}
	return nil
}

func (e *quietExporter) Shutdown(ctx context.Context) error {
	return e.exporter.Shutdown(ctx)
}

// StdoutWriter is where the stdout exporter writes. Overridable for
// tests.
var StdoutWriter io.Writer = os.Stdout

// Init installs the global tracer provider and propagators. With
// tracing disabled it installs a noop provider so instrumented code
// needs no guards.
func Init(ctx context.Context, cfg Config, serviceName, serviceVersion string, log *slog.Logger) (ShutdownFunc, error) {
	if log == nil {
		log = slog.Default()
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}
	exp = &quietExporter{
		exporter: exp,
		kind:     exporterKind(cfg),
		endpoint: normalizeEndpoint(cfg.Endpoint),
		log:      log,
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(selectSampler(cfg)),
	)
	otel.SetTracerProvider(tp)

	return func(shutdownCtx context.Context) error {
		if err := tp.ForceFlush(shutdownCtx); err != nil {
			_ = tp.Shutdown(shutdownCtx)
			return fmt.Errorf("flush tracing provider: %w", err)
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown tracing provider: %w", err)
		}
		return nil
	}, nil
}

func exporterKind(cfg Config) string {
	kind := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if kind == "" {
		kind = "stdout"
	}
	return kind
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch kind := exporterKind(cfg); kind {
	case "stdout":
		return stdouttrace.New(
			stdouttrace.WithWriter(StdoutWriter),
			stdouttrace.WithPrettyPrint(),
		)
	case "otlp":
		endpoint := normalizeEndpoint(cfg.Endpoint)
		if endpoint == "" {
			return nil, fmt.Errorf("otlp exporter needs an endpoint")
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithTimeout(timeout),
			otlptracegrpc.WithInsecure(),
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", kind)
	}
}

func selectSampler(cfg Config) sdktrace.Sampler {
	switch strings.ToLower(strings.TrimSpace(cfg.Sampler)) {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	default:
		rate := cfg.SampleRate
		if rate <= 0 {
			rate = 1
		}
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// normalizeEndpoint strips a scheme if one was supplied; the gRPC
// exporter wants host:port.
func normalizeEndpoint(endpoint string) string {
	raw := strings.TrimSpace(endpoint)
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if parsed.Host != "" {
		return parsed.Host
	}
	return raw
}
