package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// MetricsRecorder records HTTP metrics. *metrics.Manager satisfies it.
type MetricsRecorder interface {
	RecordHTTPRequest(ctx context.Context, method, path, status string, duration time.Duration)
	IncActiveConnections()
	DecActiveConnections()
}

// unmatchedRoute labels requests no route matched, keeping arbitrary paths
// out of the label set.
const unmatchedRoute = "unmatched"

// Metrics records one observation per request, labelled by chi route
// pattern. A panicking handler is recorded as 500 before the panic
// continues to Recovery.
func Metrics(recorder MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			recorder.IncActiveConnections()

			status := http.StatusInternalServerError
			defer func() {
				recorder.DecActiveConnections()
				recorder.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r), strconv.Itoa(status), time.Since(start))
			}()

			next.ServeHTTP(sw, r)
			status = sw.statusCode
		})
	}
}

func routeLabel(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc == nil || rc.RoutePattern() == "" {
		return unmatchedRoute
	}
	return rc.RoutePattern()
}
