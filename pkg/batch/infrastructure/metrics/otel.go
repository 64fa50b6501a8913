package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	coreconfig "github.com/tigerroll/passbatch/pkg/batch/core/config"
	coremetrics "github.com/tigerroll/passbatch/pkg/batch/core/metrics"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

const moduleName = "otel"

// ShutdownFunc flushes and stops a telemetry provider.
type ShutdownFunc func(context.Context) error

// NewTracerProvider builds an OTLP-exporting tracer provider according to
// cfg and installs it as the global provider. The protocol selects the
// gRPC or HTTP exporter.
func NewTracerProvider(ctx context.Context, cfg coreconfig.TracingConfig) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Protocol {
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, nil, exception.NewBatchError(moduleName, "failed to create OTLP trace exporter", err, false, false)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(serviceResource(cfg.ServiceName)),
	)
	otel.SetTracerProvider(tp)
	logger.Infof("OTLP trace exporter configured (%s, endpoint %s)", cfg.Protocol, cfg.Endpoint)
	return tp, tp.Shutdown, nil
}

// NewMeterProvider builds an OTLP-exporting meter provider according to
// cfg and installs it as the global provider.
func NewMeterProvider(ctx context.Context, cfg coreconfig.TracingConfig) (*sdkmetric.MeterProvider, ShutdownFunc, error) {
	var (
		exporter sdkmetric.Exporter
		err      error
	)
	switch cfg.Protocol {
	case "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	default:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, nil, exception.NewBatchError(moduleName, "failed to create OTLP metric exporter", err, false, false)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(serviceResource(cfg.ServiceName)),
	)
	otel.SetMeterProvider(mp)
	return mp, mp.Shutdown, nil
}

func serviceResource(serviceName string) *resource.Resource {
	if serviceName == "" {
		serviceName = "passbatch"
	}
	return resource.NewSchemaless(attribute.String("service.name", serviceName))
}

// OtelTracer implements the framework Tracer port over the OpenTelemetry
// trace API, and counts job/step executions on a meter.
type OtelTracer struct {
	tracer   trace.Tracer
	jobRuns  otelmetric.Int64Counter
	stepRuns otelmetric.Int64Counter
}

var _ coremetrics.Tracer = (*OtelTracer)(nil)

// NewOtelTracer builds a tracer on the installed global providers.
func NewOtelTracer() (*OtelTracer, error) {
	meter := otel.GetMeterProvider().Meter("passbatch")
	jobRuns, err := meter.Int64Counter("batch.job.spans")
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create job span counter", err, false, false)
	}
	stepRuns, err := meter.Int64Counter("batch.step.spans")
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create step span counter", err, false, false)
	}
	return &OtelTracer{
		tracer:   otel.GetTracerProvider().Tracer("passbatch"),
		jobRuns:  jobRuns,
		stepRuns: stepRuns,
	}, nil
}

func (t *OtelTracer) StartJobSpan(ctx context.Context, jobName string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "job "+jobName,
		trace.WithAttributes(attribute.String("batch.job.name", jobName)))
	t.jobRuns.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("batch.job.name", jobName)))
	return ctx, func() { span.End() }
}

func (t *OtelTracer) StartStepSpan(ctx context.Context, stepName string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "step "+stepName,
		trace.WithAttributes(attribute.String("batch.step.name", stepName)))
	t.stepRuns.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("batch.step.name", stepName)))
	return ctx, func() { span.End() }
}

func (t *OtelTracer) RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
