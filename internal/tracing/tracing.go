// Package tracing wires OpenTelemetry into the service. Disabled by
// default; when enabled, spans cover the HTTP surface, translation
// calls and gateway submissions.
package tracing

import (
	"context"
	"fmt"
	"time"

	"promosms/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "promosms"

// Manager owns the tracer provider lifecycle.
type Manager struct {
	settings models.TracingSettings
	logger   *logrus.Logger
	provider *trace.TracerProvider
}

func NewManager(settings models.TracingSettings, logger *logrus.Logger) *Manager {
	return &Manager{settings: settings, logger: logger}
}

func (m *Manager) Initialize(ctx context.Context) error {
	if !m.settings.Enabled {
		m.logger.Debug("Tracing is disabled")
		return nil
	}

	serviceName := m.settings.ServiceName
	if serviceName == "" {
		serviceName = tracerName
	}
	sampleRate := m.settings.SampleRate
	if sampleRate <= 0 {
		sampleRate = 0.1
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(m.settings.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(m.settings.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create trace resource: %w", err)
	}

	var exporter trace.SpanExporter
	if m.settings.UseStdout {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	} else {
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(m.settings.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	}

	m.provider = trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(sampleRate)),
	)

	otel.SetTracerProvider(m.provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	m.logger.WithFields(logrus.Fields{
		"service":     serviceName,
		"sample_rate": sampleRate,
	}).Info("Tracing initialized")

	return nil
}

func (m *Manager) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := m.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}

// StartSpan starts a span on the global tracer.
func StartSpan(ctx context.Context, name string, attributes ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, name)
	if len(attributes) > 0 {
		span.SetAttributes(attributes...)
	}
	return spanCtx, span
}

// RecordError marks the current span as failed.
func RecordError(ctx context.Context, err error) {
	span := oteltrace.SpanFromContext(ctx)
	if span != nil && span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// TraceID returns the active trace id, or "" outside a span.
func TraceID(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	sc := span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
