package middleware

import (
	"context"
	"net/http"

	"github.com/memvault/memvault/pkg/api/response"
	"github.com/memvault/memvault/pkg/auth"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
)

// RoleAuthorizer authenticates a secret and checks its role.
type RoleAuthorizer interface {
	AuthorizeRole(ctx context.Context, secret string, required memory.Role) (*auth.Principal, error)
}

// RequireRole rejects requests whose key, read from header, is unknown or
// below role. The principal is stored in the context and its key id joins
// the request id on every context log line; handlers check the target
// namespace once they have parsed it.
func RequireRole(gate RoleAuthorizer, header string, role memory.Role) func(http.Handler) http.Handler {
	if header == "" {
		header = "X-API-Key"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := gate.AuthorizeRole(r.Context(), r.Header.Get(header), role)
			if err != nil {
				response.HandleError(w, err, GetRequestID(r.Context()))
				return
			}
			setKeyID(r, p.KeyID)
			ctx := auth.WithPrincipal(r.Context(), p)
			ctx = logger.ContextWithAttrs(ctx, "request_id", GetRequestID(ctx), "key_id", p.KeyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BodyLimit caps request bodies at limit bytes. Zero disables it.
func BodyLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
