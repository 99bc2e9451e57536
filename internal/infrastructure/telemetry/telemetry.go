package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/nerrad567/factory-data-core/internal/infrastructure/config"
)

// ErrInvalidEndpoint is returned for an endpoint URL without a host.
var ErrInvalidEndpoint = errors.New("telemetry: invalid OTLP endpoint")

// ShutdownFunc flushes buffered spans and stops the exporter.
type ShutdownFunc func(context.Context) error

// Setup installs a global tracer provider exporting over OTLP/HTTP and the
// W3C trace-context propagator.
//
// When tracing is disabled the global no-op provider is left in place and
// the returned ShutdownFunc does nothing. otelhttp instrumentation in the API
// and the SWM client works either way.
func Setup(ctx context.Context, cfg config.TracingConfig, serviceName, version string) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	ep, err := parseEndpoint(cfg.Endpoint, cfg.Insecure)
	if err != nil {
		return nil, err
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(ep.host)}
	if ep.path != "" {
		opts = append(opts, otlptracehttp.WithURLPath(ep.path))
	}
	if ep.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Shutdown, nil
}

type endpoint struct {
	host     string
	path     string
	insecure bool
}

// parseEndpoint accepts either host:port or a full URL. An http:// URL
// implies an insecure connection.
func parseEndpoint(raw string, insecure bool) (endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return endpoint{}, fmt.Errorf("%w: empty", ErrInvalidEndpoint)
	}

	if !strings.Contains(raw, "://") {
		return endpoint{host: raw, insecure: insecure}, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if parsed.Host == "" {
		return endpoint{}, fmt.Errorf("%w: %s", ErrInvalidEndpoint, raw)
	}

	ep := endpoint{host: parsed.Host, insecure: insecure || parsed.Scheme == "http"}
	if parsed.Path != "" && parsed.Path != "/" {
		ep.path = parsed.Path
	}
	return ep, nil
}
