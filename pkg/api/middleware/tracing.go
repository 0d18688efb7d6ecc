package middleware

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const httpTracerName = "memvault.http"

// TracingOptions defines HTTP tracing middleware behavior.
type TracingOptions struct {
	// SkipPaths are exact paths that never get spans.
	SkipPaths map[string]struct{}
	// SkipPrefixes are path prefixes that never get spans.
	SkipPrefixes []string
}

// DefaultTracingOptions skips health checks and the docs.
func DefaultTracingOptions() TracingOptions {
	return TracingOptions{
		SkipPaths:    map[string]struct{}{"/health": {}},
		SkipPrefixes: []string{"/swagger/"},
	}
}

// Tracing creates a server span per request, continuing any W3C trace
// context sent by the caller.
func Tracing(opts TracingOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := otel.Tracer(httpTracerName).Start(ctx, "HTTP "+r.Method, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			span.SetAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			)
			if id := GetRequestID(ctx); id != "" {
				span.SetAttributes(attribute.String("memvault.request_id", id))
			}

			wrapped := newStatusWriter(w)
			r = r.WithContext(ctx)
			next.ServeHTTP(wrapped, r)

			route := routeLabel(r)
			span.SetName("HTTP " + r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", wrapped.statusCode),
			)
			if wrapped.statusCode >= http.StatusInternalServerError {
				span.SetStatus(otelcodes.Error, http.StatusText(wrapped.statusCode))
			} else {
				span.SetStatus(otelcodes.Ok, "")
			}
		})
	}
}

func (o TracingOptions) skip(path string) bool {
	if _, ok := o.SkipPaths[path]; ok {
		return true
	}
	for _, prefix := range o.SkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
