// Package observability installs the OpenTelemetry meter and tracer
// providers. Metrics are exported through the Prometheus registry scraped
// at /metrics; traces go to Jaeger when a collector is configured.
package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-verification/internal/common/config"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "marketplace-verification/jobs"

// Instruments are created on the global providers, which forward to the
// providers installed by New once it has run.
var (
	meter       = otel.Meter(instrumentationName)
	tracer      = otel.Tracer(instrumentationName)
	jobCounter  otelmetric.Int64Counter
	jobDuration otelmetric.Float64Histogram
)

func init() {
	jobCounter, _ = meter.Int64Counter(
		"jobs_processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	jobDuration, _ = meter.Float64Histogram(
		"jobs_duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
}

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// New installs the providers. registerer receives the Prometheus collector;
// nil means the default registry.
func New(serviceName string, tracing config.TracingConfig, registerer promclient.Registerer) (*Observability, error) {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	opts := []prometheus.Option{}
	if registerer != nil {
		opts = append(opts, prometheus.WithRegisterer(registerer))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(mp)

	o := &Observability{meterProvider: mp}
	if !tracing.Enabled || tracing.CollectorEndpoint == "" {
		return o, nil
	}

	traceExporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(tracing.CollectorEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("create jaeger exporter: %w", err)
	}
	o.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(o.tracerProvider)
	return o, nil
}

// StartSpan starts a span on the jobs tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func RecordJob(ctx context.Context, taskType, status string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	)
	jobCounter.Add(ctx, 1, attrs)
	jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (o *Observability) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tracerProvider != nil {
		errs = append(errs, o.tracerProvider.Shutdown(ctx))
	}
	if o.meterProvider != nil {
		errs = append(errs, o.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
