package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

var (
	// Log is the app global logger
	Log = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// InitLogger initializes the app global logger.
// When exporterEndpoint is empty logs only go to stdout.
func InitLogger(serviceName, serviceVersion, serviceEnvironment, exporterEndpoint string, level slog.Level) (func(ctx context.Context) error, error) {

	stdoutHandler := newStdoutHandler(os.Stdout, level)

	if exporterEndpoint == "" {
		Log = slog.New(stdoutHandler)
		return func(context.Context) error { return nil }, nil
	}

	var slogHandler slog.Handler

	ctx := context.Background()

	logExporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(exporterEndpoint),
		otlploggrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("failed to otlploggrpc.New: %w", err)
	}

	lp := log.NewLoggerProvider(
		log.WithProcessor(
			log.NewBatchProcessor(logExporter),
		),
		log.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.DeploymentEnvironmentNameKey.String(serviceEnvironment))),
	)

	slogHandler = otelslog.NewHandler("github.com/ogero/stremio-autoarabic",
		otelslog.WithLoggerProvider(lp))

	if serviceEnvironment == "lcl" || serviceEnvironment == "dk" {
		slogHandler = slogmulti.Fanout(
			slogHandler,
			stdoutHandler,
		)
	}

	Log = slog.New(slogHandler)

	return lp.Shutdown, nil
}

// newStdoutHandler writes human readable lines on a terminal and JSON otherwise.
func newStdoutHandler(f *os.File, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return slog.NewTextHandler(f, opts)
	}
	return slog.NewJSONHandler(f, opts)
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
