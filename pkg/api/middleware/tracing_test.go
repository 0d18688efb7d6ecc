package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setTracingTestProvider(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_ContinuesInboundTrace(t *testing.T) {
	recorder := setTracingTestProvider(t)

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		SpanID:     trace.SpanID{2, 2, 2, 2, 2, 2, 2, 2},
		TraceFlags: trace.FlagsSampled,
	})
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(trace.ContextWithSpanContext(context.Background(), parent), carrier)

	h := Tracing(DefaultTracingOptions())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	req := httptest.NewRequest(http.MethodPost, "/v1/recall", nil)
	for k, v := range carrier {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Parent().TraceID() != parent.TraceID() {
		t.Errorf("trace id = %s, want %s", spans[0].Parent().TraceID(), parent.TraceID())
	}
	if spans[0].SpanKind() != trace.SpanKindServer {
		t.Errorf("span kind = %v", spans[0].SpanKind())
	}
}

func TestTracing_RouteAndStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   otelcodes.Code
	}{
		{name: "ok", status: http.StatusOK, code: otelcodes.Ok},
		{name: "client error stays ok", status: http.StatusNotFound, code: otelcodes.Ok},
		{name: "server error", status: http.StatusBadGateway, code: otelcodes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := setTracingTestProvider(t)

			r := chi.NewRouter()
			r.Use(Tracing(DefaultTracingOptions()))
			r.Delete("/v1/admin/api-keys/{id}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/v1/admin/api-keys/abc", nil))

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			span := spans[0]
			if span.Name() != "HTTP DELETE /v1/admin/api-keys/{id}" {
				t.Errorf("span name = %q", span.Name())
			}
			if v, ok := spanAttr(span, "http.response.status_code"); !ok || v.AsInt64() != int64(tt.status) {
				t.Errorf("status attribute = %v", v)
			}
			if span.Status().Code != tt.code {
				t.Errorf("span status = %v, want %v", span.Status().Code, tt.code)
			}
		})
	}
}

func TestTracing_SkipsHealthAndDocs(t *testing.T) {
	recorder := setTracingTestProvider(t)
	h := Tracing(DefaultTracingOptions())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	for _, path := range []string{"/health", "/swagger/index.html"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if n := len(recorder.Ended()); n != 0 {
		t.Errorf("expected no spans, got %d", n)
	}
}
