package tracing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/settings"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var (
	once    sync.Once
	initErr error
	tp      *sdktrace.TracerProvider
	mu      sync.Mutex
)

// InitTracer initializes the global tracer. Safe to call multiple times.
// Only the first call will actually initialize the tracer.
func InitTracer(appSettings *settings.Settings) error {
	once.Do(func() {
		if appSettings.Tracing.CollectorURL == nil {
			initErr = errors.NewConfigurationError("tracing_collector_url is not set")
			return
		}

		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(appSettings.Tracing.CollectorURL.Host),
		}

		if appSettings.Tracing.CollectorURL.Scheme != "https" {
			opts = append(opts, otlptracehttp.WithInsecure())
		}

		if path := appSettings.Tracing.CollectorURL.Path; path != "" && path != "/" {
			opts = append(opts, otlptracehttp.WithURLPath(path))
		}

		var exporter *otlptrace.Exporter

		exporter, initErr = otlptracehttp.New(context.Background(), opts...)
		if initErr != nil {
			initErr = errors.NewProcessingError("failed to create OTLP exporter", initErr)
			return
		}

		var res *resource.Resource

		res, initErr = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceNameKey.String(appSettings.Tracing.ServiceName),
				semconv.ServiceVersionKey.String(appSettings.Legacy.UserAgentVersion),
				// several nodes may share a service name
				semconv.ServiceInstanceIDKey.String(uuid.New().String()),
			),
		)
		if initErr != nil {
			initErr = errors.NewProcessingError("failed to create resource", initErr)
			return
		}

		mu.Lock()
		defer mu.Unlock()

		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Second)),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(appSettings.Tracing.SampleRate)),
			sdktrace.WithResource(res),
		)

		otel.SetTracerProvider(tp)

		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	})

	return initErr
}

// ShutdownTracer flushes and stops the global tracer provider.
// Safe to call multiple times - subsequent calls are no-ops.
func ShutdownTracer(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if tp != nil {
		if err := tp.ForceFlush(ctx); err != nil {
			// the collector being down must not block shutdown
			if strings.Contains(err.Error(), "connection refused") {
				tp = nil
				return nil
			}

			return errors.NewProcessingError("failed to flush spans", err)
		}

		if err := tp.Shutdown(ctx); err != nil {
			return errors.NewProcessingError("failed to shutdown tracer", err)
		}

		tp = nil
	}

	return nil
}
