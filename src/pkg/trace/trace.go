package trace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var logger = log.WithField("package", "trace")

// PerformanceReportFile is written to the output directory when tracing is enabled.
const PerformanceReportFile = "performance-report.json"

var tracerName = "cargo-container"

// InitTracer installs a tracer provider. When enabled, finished spans are
// written as JSON to outputDir/PerformanceReportFile; otherwise spans are
// no-ops. The returned function flushes and closes the exporter.
func InitTracer(name string, enabled bool, outputDir string) (func(), error) {
	tracerName = name
	if !enabled {
		return func() {}, nil
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(outputDir, PerformanceReportFile)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create performance report: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f), stdouttrace.WithPrettyPrint())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithField("error", err).Warn("Failed to shut down tracer")
		}
		if err := f.Close(); err != nil {
			logger.WithField("error", err).Warn("Failed to close performance report")
		}
		logger.WithField("filePath", path).Info("Written performance report")
	}, nil
}

// StartSpan starts a span named name as a child of ctx.
func StartSpan(ctx context.Context, name string) (context.Context, oteltrace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}
