// Package tracing wires OpenTelemetry tracing for memvault and offers small
// helpers for starting spans around store, provider and recall work.
package tracing

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/memvault/memvault/config"
	"github.com/memvault/memvault/pkg/logger"
)

// InstrumentationName is the tracer name used across memvault packages.
const InstrumentationName = "github.com/memvault/memvault"

// Span attribute keys shared by the memvault services.
const (
	NamespaceKey = attribute.Key("memvault.namespace")
	ScopeKey     = attribute.Key("memvault.scope")
	SessionKey   = attribute.Key("memvault.session_id")
)

// Namespace tags a span with the tenant namespace.
func Namespace(ns string) attribute.KeyValue { return NamespaceKey.String(ns) }

// Scope tags a span with the record scope (knowledge, events, requirements).
func Scope(scope string) attribute.KeyValue { return ScopeKey.String(scope) }

// Session tags a span with an agent session id.
func Session(id string) attribute.KeyValue { return SessionKey.String(id) }

// failureReportInterval bounds how often a failing collector is logged.
const failureReportInterval = time.Minute

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

// reportExporterFailure logs a failed export; dropped counts the spans lost
// since the previous report.
var reportExporterFailure = func(err error, endpoint string, dropped int) {
	logger.Warn("tracing exporter failed",
		"error", err,
		"endpoint", endpoint,
		"dropped_spans", dropped,
	)
}

var newOTLPExporter = func(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	endpoint := normalizeEndpoint(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("tracing endpoint cannot be empty")
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

// isolatingExporter swallows export errors so a collector outage never
// fails the batcher, and reports them at most once per interval.
type isolatingExporter struct {
	next     sdktrace.SpanExporter
	endpoint string
	dropped  atomic.Int64
	report   rate.Sometimes
}

func newIsolatingExporter(next sdktrace.SpanExporter, endpoint string) *isolatingExporter {
	return &isolatingExporter{
		next:     next,
		endpoint: endpoint,
		report:   rate.Sometimes{First: 1, Interval: failureReportInterval},
	}
}

func (e *isolatingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	err := e.next.ExportSpans(ctx, spans)
	if err == nil {
		return nil
	}
	e.dropped.Add(int64(len(spans)))
	e.report.Do(func() {
		reportExporterFailure(err, e.endpoint, int(e.dropped.Swap(0)))
	})
	return nil
}

func (e *isolatingExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

// Init installs the process-wide propagator and tracer provider. With
// tracing disabled a noop provider is installed and the returned
// ShutdownFunc does nothing.
func Init(ctx context.Context, cfg config.TracingConfig, serviceName, serviceVersion string) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	tp, err := newProvider(ctx, cfg, serviceName, serviceVersion)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		flushErr := tp.ForceFlush(ctx)
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracing provider: %w", err)
		}
		if flushErr != nil {
			return fmt.Errorf("force flush tracing provider: %w", flushErr)
		}
		return nil
	}, nil
}

func newProvider(ctx context.Context, cfg config.TracingConfig, serviceName, serviceVersion string) (*sdktrace.TracerProvider, error) {
	switch {
	case strings.TrimSpace(cfg.Endpoint) == "":
		return nil, fmt.Errorf("tracing endpoint cannot be empty")
	case cfg.Timeout <= 0:
		return nil, fmt.Errorf("tracing timeout must be > 0")
	}

	exp, err := newOTLPExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create tracing exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	))
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(newIsolatingExporter(exp, normalizeEndpoint(cfg.Endpoint))),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(selectSampler(cfg)),
	), nil
}

func selectSampler(cfg config.TracingConfig) sdktrace.Sampler {
	switch strings.ToLower(strings.TrimSpace(cfg.Sampler)) {
	case "always":
		return sdktrace.AlwaysSample()
	case "never":
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}
}

// normalizeEndpoint strips a scheme and path; the gRPC exporter wants
// host:port.
func normalizeEndpoint(endpoint string) string {
	raw := strings.TrimSpace(endpoint)
	if !strings.Contains(raw, "://") {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}

// Start opens a span on the global memvault tracer.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
