// Package middleware provides the HTTP middleware chain of the memvault API.
package middleware

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/memvault/memvault/pkg/logger"
)

// statusWriter captures the status code and body size.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
	written    bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *statusWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusWriter) Write(b []byte) (int, error) {
	rw.written = true
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack hands the connection to the websocket upgrader.
func (rw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T does not support hijacking", rw.ResponseWriter)
	}
	rw.statusCode = http.StatusSwitchingProtocols
	rw.written = true
	return h.Hijack()
}

// requestInfo is filled by inner middleware for the access log line.
type requestInfo struct {
	keyID string
}

type requestInfoKey struct{}

func setKeyID(r *http.Request, keyID string) {
	if info, ok := r.Context().Value(requestInfoKey{}).(*requestInfo); ok {
		info.keyID = keyID
	}
}

// Logger logs one line per request. The request logger, carrying the
// request id, is stored in the context for handlers.
func Logger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With("request_id", GetRequestID(r.Context()))
			info := &requestInfo{}
			ctx := context.WithValue(reqLog.WithContext(r.Context()), requestInfoKey{}, info)
			r = r.WithContext(ctx)

			wrapped := newStatusWriter(w)
			next.ServeHTTP(wrapped, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"size", wrapped.size,
				"remote_addr", r.RemoteAddr,
			}
			if info.keyID != "" {
				args = append(args, "key_id", info.keyID)
			}

			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				reqLog.ErrorContext(r.Context(), "HTTP request", args...)
			case wrapped.statusCode >= http.StatusBadRequest:
				reqLog.WarnContext(r.Context(), "HTTP request", args...)
			case r.URL.Path == "/health":
				reqLog.DebugContext(r.Context(), "HTTP request", args...)
			default:
				reqLog.InfoContext(r.Context(), "HTTP request", args...)
			}
		})
	}
}
