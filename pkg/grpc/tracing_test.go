package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/memvault/memvault/pkg/logger"
)

const checkSpan = "/grpc.health.v1.Health/Check"

// installRecorder swaps the global tracer provider for one recording into
// memory and restores the previous one on cleanup.
func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})
	return recorder
}

func startTracedServer(t *testing.T, tracing bool) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.EnableTracing = tracing

	srv, err := New(cfg, nil, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv
}

func spanNamed(recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	for _, s := range recorder.Ended() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]string {
	out := make(map[attribute.Key]string)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value.Emit()
	}
	return out
}

func TestTracing_HealthCheckSpan(t *testing.T) {
	recorder := installRecorder(t)
	srv := startTracedServer(t, true)
	client := newClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)

	var span sdktrace.ReadOnlySpan
	require.Eventually(t, func() bool {
		span = spanNamed(recorder, checkSpan)
		return span != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, otelcodes.Ok, span.Status().Code)

	got := attrs(span)
	assert.Equal(t, "grpc", got["rpc.system"])
	assert.Equal(t, "grpc.health.v1.Health", got["rpc.service"])
	assert.Equal(t, "Check", got["rpc.method"])
	assert.Equal(t, "OK", got["rpc.grpc.status_code"])
}

func TestTracing_UnknownServiceRecordsError(t *testing.T) {
	recorder := installRecorder(t)
	srv := startTracedServer(t, true)
	client := newClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: "memvault.Nope"})
	require.Error(t, err)

	var span sdktrace.ReadOnlySpan
	require.Eventually(t, func() bool {
		span = spanNamed(recorder, checkSpan)
		return span != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, otelcodes.Error, span.Status().Code)
	assert.Equal(t, "NotFound", attrs(span)["rpc.grpc.status_code"])
}

func TestTracing_ContinuesCallerTrace(t *testing.T) {
	recorder := installRecorder(t)
	srv := startTracedServer(t, true)
	client := newClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ctx, parent := otel.Tracer("test").Start(ctx, "caller")
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	parent.End()

	outgoing := metadata.NewOutgoingContext(ctx, metadata.New(carrier))
	_, err := client.Check(outgoing, &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)

	var span sdktrace.ReadOnlySpan
	require.Eventually(t, func() bool {
		span = spanNamed(recorder, checkSpan)
		return span != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, parent.SpanContext().TraceID(), span.SpanContext().TraceID())
	assert.Equal(t, parent.SpanContext().SpanID(), span.Parent().SpanID())
}

func TestTracing_DisabledRecordsNothing(t *testing.T) {
	recorder := installRecorder(t)
	srv := startTracedServer(t, false)
	client := newClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Nil(t, spanNamed(recorder, checkSpan))
}
