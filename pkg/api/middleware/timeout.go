package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/memvault/memvault/pkg/api/response"
)

type writerState int

const (
	stateIdle writerState = iota
	stateWriting
	stateExpired
)

// deadlineWriter guards the real writer so that exactly one of the handler
// and the timeout response reaches the client.
type deadlineWriter struct {
	http.ResponseWriter
	mu    sync.Mutex
	state writerState
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.state != stateIdle {
		return
	}
	dw.state = stateWriting
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.state == stateExpired {
		return 0, http.ErrHandlerTimeout
	}
	dw.state = stateWriting
	return dw.ResponseWriter.Write(b)
}

func (dw *deadlineWriter) Unwrap() http.ResponseWriter {
	return dw.ResponseWriter
}

// expire claims the response for the timeout path. It fails once the
// handler has started writing.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.state == stateWriting {
		return false
	}
	dw.state = stateExpired
	return true
}

// Timeout bounds each request to d. The handler keeps running on a context
// that is cancelled at the deadline; if it has not started responding by
// then the client gets a 504 envelope, otherwise it is waited for. Panics are re-raised on the calling
// goroutine. d <= 0 disables the middleware.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			dw := &deadlineWriter{ResponseWriter: w}
			finished := make(chan any, 1)
			go func() {
				var panicVal any
				defer func() {
					if v := recover(); v != nil {
						panicVal = v
					}
					finished <- panicVal
				}()
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case v := <-finished:
				if v != nil {
					panic(v)
				}
			case <-ctx.Done():
				if dw.expire() {
					response.Error(w, http.StatusGatewayTimeout, response.ErrCodeGatewayTimeout,
						"request timeout", GetRequestID(r.Context()))
					return
				}
				// The handler owns the response; let it finish.
				if v := <-finished; v != nil {
					panic(v)
				}
			}
		})
	}
}
