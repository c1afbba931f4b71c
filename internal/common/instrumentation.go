package common

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	metric2 "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.37.0"
)

// InitInstrumentation setups otel.
// When exporterEndpoint is empty no exporter is started and the counters record into the global no-op provider.
func InitInstrumentation(serviceName, serviceVersion, serviceEnvironment, exporterEndpoint string) (func(ctx context.Context), error) {

	if exporterEndpoint == "" {
		if err := createCustomMeters(serviceName, serviceVersion, serviceEnvironment); err != nil {
			return nil, fmt.Errorf("failed to create custom meters: %w", err)
		}
		return func(context.Context) {}, nil
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			semconv.DeploymentEnvironmentName(serviceEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to merge otel resource: %w", err)
	}

	// Metric exporter
	metricExporter, err := otlpmetricgrpc.New(
		context.Background(),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithEndpoint(exporterEndpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	// Metric provider
	metricsProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(metricsProvider)

	err = createCustomMeters(serviceName, serviceVersion, serviceEnvironment)
	if err != nil {
		_ = metricsProvider.Shutdown(context.Background())
		_ = metricExporter.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create custom meters: %w", err)
	}

	// Trace exporter
	traceExporter, err := otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(exporterEndpoint),
	)
	if err != nil {
		_ = metricsProvider.Shutdown(context.Background())
		_ = metricExporter.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Trace provider
	traceProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(traceProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) {
		_ = metricsProvider.Shutdown(ctx)
		_ = metricExporter.Shutdown(ctx)
		_ = traceProvider.Shutdown(ctx)
		_ = traceExporter.Shutdown(ctx)
	}, nil
}

// CacheGetsTotalIncr increases in 1 a metric for tracking cache hits and misses
var CacheGetsTotalIncr = func(ctx context.Context, keyPrefix, result string) {}

// SubtitlesSearchesTotalIncr increases in 1 a metric for tracking subtitle searches by outcome
var SubtitlesSearchesTotalIncr = func(ctx context.Context, result string) {}

// SubtitlesDownloadsTotalIncr increases in 1 a metric for tracking translated subtitle downloads by provider
var SubtitlesDownloadsTotalIncr = func(ctx context.Context, provider, lang string) {}

// TranslatedLinesTotalAdd adds n to a metric for tracking translated and passed through lines
var TranslatedLinesTotalAdd = func(ctx context.Context, result string, n int) {}

func createCustomMeters(serviceName, serviceVersion, serviceEnvironment string) error {
	meter := otel.Meter(serviceName)
	common := []attribute.KeyValue{
		attribute.String(string(semconv.DeploymentEnvironmentNameKey), serviceEnvironment),
		attribute.String(string(semconv.ServiceVersionKey), serviceVersion),
	}
	with := func(attrs ...attribute.KeyValue) metric2.AddOption {
		return metric2.WithAttributes(append(attrs, common...)...)
	}

	cacheGetsTotal, err := meter.Int64Counter("cache_gets_total")
	if err != nil {
		return fmt.Errorf("failed to create custom meter: %w", err)
	}
	CacheGetsTotalIncr = func(ctx context.Context, keyPrefix, result string) {
		cacheGetsTotal.Add(ctx, 1, with(
			attribute.String("key.prefix", keyPrefix),
			attribute.String("result", result),
		))
	}

	subtitlesSearchesTotal, err := meter.Int64Counter("subtitles_searches_total")
	if err != nil {
		return fmt.Errorf("failed to create custom meter: %w", err)
	}
	SubtitlesSearchesTotalIncr = func(ctx context.Context, result string) {
		subtitlesSearchesTotal.Add(ctx, 1, with(attribute.String("result", result)))
	}

	subtitlesDownloadsTotal, err := meter.Int64Counter("subtitles_downloads_total")
	if err != nil {
		return fmt.Errorf("failed to create custom meter: %w", err)
	}
	SubtitlesDownloadsTotalIncr = func(ctx context.Context, provider, lang string) {
		subtitlesDownloadsTotal.Add(ctx, 1, with(
			attribute.String("provider", provider),
			attribute.String("lang", lang),
		))
	}

	translatedLinesTotal, err := meter.Int64Counter("translated_lines_total")
	if err != nil {
		return fmt.Errorf("failed to create custom meter: %w", err)
	}
	TranslatedLinesTotalAdd = func(ctx context.Context, result string, n int) {
		if n <= 0 {
			return
		}
		translatedLinesTotal.Add(ctx, int64(n), with(attribute.String("result", result)))
	}

	return nil
}
