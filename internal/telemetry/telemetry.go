package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/yajur-khanna/asm-tool/internal/config"
)

// Recorder receives pipeline measurements. The stage runner and the driver only see this interface.
type Recorder interface {
	RecordStage(ctx context.Context, stage, status string, duration time.Duration)
	RecordDomain(ctx context.Context, state string, duration time.Duration)
	RecordScore(ctx context.Context, score int)
	Close() error
}

type telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	stageCounter   metric.Int64Counter
	stageDuration  metric.Float64Histogram
	domainCounter  metric.Int64Counter
	domainDuration metric.Float64Histogram
	riskScore      metric.Int64Histogram
}

func New(ctx context.Context, cfg config.TelemetryConfig) (Recorder, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var (
		exporter       sdktrace.SpanExporter
		metricExporter sdkmetric.Exporter
	)

	switch cfg.ExporterType {
	case "otlp":
		client := otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = exp

		mexp, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		metricExporter = mexp
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return newInstruments(mp.Meter(cfg.ServiceName), tp, mp)
}

func newInstruments(meter metric.Meter, tp *sdktrace.TracerProvider, mp *sdkmetric.MeterProvider) (*telemetry, error) {
	stageCounter, err := meter.Int64Counter("asm.stage.total",
		metric.WithDescription("Stage executions by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram("asm.stage.duration",
		metric.WithDescription("Stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	domainCounter, err := meter.Int64Counter("asm.domain.total",
		metric.WithDescription("Domains processed by final state"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	domainDuration, err := meter.Float64Histogram("asm.domain.duration",
		metric.WithDescription("End-to-end domain processing time in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	riskScore, err := meter.Int64Histogram("asm.risk.score",
		metric.WithDescription("Risk scores assigned to domains"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracerProvider: tp,
		meterProvider:  mp,
		stageCounter:   stageCounter,
		stageDuration:  stageDuration,
		domainCounter:  domainCounter,
		domainDuration: domainDuration,
		riskScore:      riskScore,
	}, nil
}

func (t *telemetry) RecordStage(ctx context.Context, stage, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("stage.name", stage),
		attribute.String("stage.status", status),
	)
	t.stageCounter.Add(ctx, 1, attrs)
	t.stageDuration.Record(ctx, duration.Seconds(), attrs)
}

func (t *telemetry) RecordDomain(ctx context.Context, state string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("domain.state", state))
	t.domainCounter.Add(ctx, 1, attrs)
	t.domainDuration.Record(ctx, duration.Seconds(), attrs)
}

func (t *telemetry) RecordScore(ctx context.Context, score int) {
	t.riskScore.Record(ctx, int64(score))
}

// Close flushes pending spans and metrics.
func (t *telemetry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Noop returns a Recorder that drops everything.
func Noop() Recorder {
	return noopTelemetry{}
}

type noopTelemetry struct{}

func (noopTelemetry) RecordStage(context.Context, string, string, time.Duration) {}
func (noopTelemetry) RecordDomain(context.Context, string, time.Duration)        {}
func (noopTelemetry) RecordScore(context.Context, int)                           {}
func (noopTelemetry) Close() error                                               { return nil }
