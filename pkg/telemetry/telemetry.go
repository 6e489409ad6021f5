// Package telemetry wires OpenTelemetry tracing for the analyzer.
//
// Configuration comes entirely from the standard OTEL_* environment
// variables, so a run inside a collector-equipped environment traces
// itself without any analyzer-side configuration:
//
//	OTEL_ENABLED                 - turn tracing on (default: off)
//	OTEL_SERVICE_NAME            - service name (default: heapgraph-analyzer)
//	OTEL_SERVICE_VERSION         - service version (default: unknown)
//	OTEL_EXPORTER_OTLP_ENDPOINT  - OTLP collector endpoint
//	OTEL_EXPORTER_OTLP_PROTOCOL  - grpc or http/protobuf (default: grpc)
//	OTEL_EXPORTER_OTLP_HEADERS   - extra headers, "k1=v1,k2=v2"
//	OTEL_EXPORTER_OTLP_INSECURE  - plaintext connection (default: off)
//	OTEL_TRACES_SAMPLER          - sampler name (default: always_on)
//	OTEL_TRACES_SAMPLER_ARG      - sampler argument, e.g. a ratio
//	OTEL_RESOURCE_ATTRIBUTES     - extra resource attributes, "k1=v1,..."
//
// When disabled, Init leaves the global no-op TracerProvider in place,
// so spans started around dump analysis cost nothing.
package telemetry

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

var (
	globalConfig *Config
	configOnce   sync.Once
)

// ShutdownFunc flushes and stops the TracerProvider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error {
	return nil
}

// Init sets up the global TracerProvider from the environment. With
// OTEL_ENABLED unset it returns a no-op shutdown and changes nothing.
func Init(ctx context.Context) (ShutdownFunc, error) {
	cfg := loadConfig()
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := buildResource(cfg)
	if err != nil {
		return noopShutdown, err
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(newSampler(cfg)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Enabled reports whether tracing is turned on. The repository layer
// uses this to decide whether to attach the gorm tracing plugin.
func Enabled() bool {
	return loadConfig().Enabled
}

// GetConfig returns the cached telemetry configuration.
func GetConfig() *Config {
	return loadConfig()
}

func loadConfig() *Config {
	configOnce.Do(func() {
		globalConfig = LoadFromEnv()
	})
	return globalConfig
}

func buildResource(cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if hostname, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(hostname))
	}
	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}
