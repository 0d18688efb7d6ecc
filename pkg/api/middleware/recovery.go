package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/memvault/memvault/pkg/api/response"
	"github.com/memvault/memvault/pkg/logger"
)

// Recovery turns a handler panic into a 500 envelope. http.ErrAbortHandler
// is re-raised so net/http can abort the connection quietly.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					recovered(log, w, r, v)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func recovered(log logger.Logger, w http.ResponseWriter, r *http.Request, v any) {
	if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
		panic(v)
	}

	ctx := r.Context()
	log.ErrorContext(ctx, "handler panic",
		"panic", v,
		"method", r.Method,
		"path", r.URL.Path,
		"stack", string(debug.Stack()),
	)
	response.Status(w, http.StatusInternalServerError, GetRequestID(ctx))
}
